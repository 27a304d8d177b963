package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/wolfman30/dental-booking/internal/app/bootstrap"
	"github.com/wolfman30/dental-booking/internal/booking"
	"github.com/wolfman30/dental-booking/internal/clinicapi"
	appconfig "github.com/wolfman30/dental-booking/internal/config"
	"github.com/wolfman30/dental-booking/internal/scheduling"
	"github.com/wolfman30/dental-booking/pkg/logging"
)

// app holds what every subcommand shares once flags are parsed.
type app struct {
	cfg        *appconfig.Config
	logger     *logging.Logger
	jsonOutput bool

	client  *clinicapi.Client
	loc     *time.Location
	fetcher *booking.Fetcher
}

func (a *app) connect(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	loc, err := time.LoadLocation(a.cfg.ClinicTimezone)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", a.cfg.ClinicTimezone, err)
	}
	a.loc = loc

	client, err := bootstrap.BuildClinicClient(a.cfg, nil, a.logger)
	if err != nil {
		return err
	}
	tokens, err := bootstrap.ConsoleTokenSource(ctx, a.cfg)
	if err != nil {
		return err
	}
	a.client = client.WithTokenSource(tokens)
	a.fetcher = booking.NewFetcher(loc, nil, a.logger)
	return nil
}

func (a *app) procedure(ctx context.Context, id string) (scheduling.Procedure, error) {
	procedures, err := a.client.ListProcedures(ctx)
	if err != nil {
		return scheduling.Procedure{}, err
	}
	for _, p := range procedures {
		if p.ID == id {
			return p, nil
		}
	}
	return scheduling.Procedure{}, fmt.Errorf("%w: %s", booking.ErrProcedureNotFound, id)
}

func (a *app) doctor(ctx context.Context, id string) (scheduling.Doctor, error) {
	doctors, err := a.client.ListDoctors(ctx)
	if err != nil {
		return scheduling.Doctor{}, err
	}
	for _, d := range doctors {
		if d.ID == id {
			return d, nil
		}
	}
	return scheduling.Doctor{}, fmt.Errorf("%w: %s", booking.ErrDoctorNotFound, id)
}

// parseStart reads a candidate start in the clinic zone.
func (a *app) parseStart(s string) (time.Time, error) {
	t, err := booking.ParseCandidate(strings.TrimSpace(s), a.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("--start: %w", err)
	}
	return t, nil
}

func (a *app) clock(t time.Time) string {
	return t.In(a.loc).Format("Mon 2006-01-02 15:04")
}

// print writes v as JSON when --json is set, otherwise calls table.
func (a *app) print(w io.Writer, v any, table func(tw *tabwriter.Writer)) error {
	if a.jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}
