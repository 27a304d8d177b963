package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wolfman30/dental-booking/internal/app/bootstrap"
	"github.com/wolfman30/dental-booking/internal/audit"
	"github.com/wolfman30/dental-booking/internal/booking"
	"github.com/wolfman30/dental-booking/internal/scheduling"
)

func proceduresCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "procedures",
		Short: "List bookable procedures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			procedures, err := a.client.ListProcedures(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), procedures, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "ID\tNAME\tMINUTES")
				for _, p := range procedures {
					fmt.Fprintf(tw, "%s\t%s\t%d\n", p.ID, p.Name, p.DurationMinutes)
				}
			})
		},
	}
}

func doctorsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctors",
		Short: "List doctors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doctors, err := a.client.ListDoctors(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), doctors, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "ID\tNAME\tSPECIALTY")
				for _, d := range doctors {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", d.ID, d.DisplayName(), d.Specialty)
				}
			})
		},
	}
}

func slotsCmd(a *app) *cobra.Command {
	var doctorID, procedureID, day string
	var step time.Duration
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Print bookable start times in the booking window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			procedure, err := a.procedure(ctx, procedureID)
			if err != nil {
				return err
			}
			now := time.Now()
			av, err := a.fetcher.Fetch(ctx, a.client, doctorID, procedure.ID, now)
			if err != nil {
				return err
			}
			starts := scheduling.BookableStarts(av, procedure.DurationMinutes, step, now)
			if day != "" {
				starts = onDay(starts, day, a.loc)
			}
			return a.print(cmd.OutOrStdout(), starts, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "START\tEND\t(%s, %d min)\n", procedure.Name, procedure.DurationMinutes)
				for _, s := range starts {
					fmt.Fprintf(tw, "%s\t%s\t\n", a.clock(s), s.Add(procedure.Duration()).In(a.loc).Format("15:04"))
				}
			})
		},
	}
	cmd.Flags().StringVar(&doctorID, "doctor", "", "Doctor id")
	cmd.Flags().StringVar(&procedureID, "procedure", "", "Procedure id")
	cmd.Flags().StringVar(&day, "date", "", "Only show starts on this day (YYYY-MM-DD)")
	cmd.Flags().DurationVar(&step, "step", 15*time.Minute, "Spacing between candidate starts")
	_ = cmd.MarkFlagRequired("doctor")
	_ = cmd.MarkFlagRequired("procedure")
	return cmd
}

func onDay(starts []time.Time, day string, loc *time.Location) []time.Time {
	out := make([]time.Time, 0, len(starts))
	for _, s := range starts {
		if s.In(loc).Format("2006-01-02") == day {
			out = append(out, s)
		}
	}
	return out
}

func checkCmd(a *app) *cobra.Command {
	var doctorID, procedureID, start string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a candidate start against live availability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			candidate, err := a.parseStart(start)
			if err != nil {
				return err
			}
			procedure, err := a.procedure(ctx, procedureID)
			if err != nil {
				return err
			}
			now := time.Now()
			av, err := a.fetcher.Fetch(ctx, a.client, doctorID, procedure.ID, now)
			if err != nil {
				return err
			}
			d := scheduling.Validate(candidate, av.OpenBlocks, av.Booked, procedure.DurationMinutes, now)
			return a.print(cmd.OutOrStdout(), d, func(tw *tabwriter.Writer) {
				if d.Accepted {
					fmt.Fprintf(tw, "%s\t%s until %s\n", d.Message, a.clock(candidate), d.End.In(a.loc).Format("15:04"))
					return
				}
				fmt.Fprintf(tw, "%s\t(%s)\n", d.Message, d.Reason)
			})
		},
	}
	cmd.Flags().StringVar(&doctorID, "doctor", "", "Doctor id")
	cmd.Flags().StringVar(&procedureID, "procedure", "", "Procedure id")
	cmd.Flags().StringVar(&start, "start", "", "Candidate start, RFC 3339 or YYYY-MM-DDTHH:MM in the clinic zone")
	for _, f := range []string{"doctor", "procedure", "start"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func bookCmd(a *app) *cobra.Command {
	var doctorID, procedureID, start, email string
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book an appointment for a patient",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			candidate, err := a.parseStart(start)
			if err != nil {
				return err
			}
			procedure, err := a.procedure(ctx, procedureID)
			if err != nil {
				return err
			}
			doctor, err := a.doctor(ctx, doctorID)
			if err != nil {
				return err
			}

			cfg := booking.SubmitterConfig{Revalidate: true, Fetcher: a.fetcher, Logger: a.logger}
			if pool := bootstrap.ConnectPostgresPool(ctx, a.cfg.DatabaseURL, a.logger); pool != nil {
				defer pool.Close()
				cfg.Recorder = audit.NewStore(pool)
			}
			res, err := booking.NewSubmitter(cfg).Submit(ctx, a.client, booking.SubmitRequest{
				SessionID:    "bookctl",
				PatientEmail: email,
				Procedure:    procedure,
				DoctorID:     doctor.ID,
				DoctorName:   doctor.DisplayName(),
				Pending: scheduling.PendingSelection{
					Start: candidate,
					End:   candidate.Add(procedure.Duration()),
				},
			}, time.Now())
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), res, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "booked\treservation %s\t%s with %s\n", res.ID, a.clock(candidate), doctor.DisplayName())
			})
		},
	}
	cmd.Flags().StringVar(&doctorID, "doctor", "", "Doctor id")
	cmd.Flags().StringVar(&procedureID, "procedure", "", "Procedure id")
	cmd.Flags().StringVar(&start, "start", "", "Appointment start, RFC 3339 or YYYY-MM-DDTHH:MM in the clinic zone")
	cmd.Flags().StringVar(&email, "email", "", "Patient email")
	for _, f := range []string{"doctor", "procedure", "start", "email"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func attemptsCmd(a *app) *cobra.Command {
	var email string
	var limit int
	cmd := &cobra.Command{
		Use:   "attempts",
		Short: "Show recorded booking attempts for a patient",
		Args:  cobra.NoArgs,
		// Reads the audit database only; no clinic credentials needed.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if a.cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}
			pool := bootstrap.ConnectPostgresPool(ctx, a.cfg.DatabaseURL, a.logger)
			if pool == nil {
				return fmt.Errorf("audit database unavailable")
			}
			defer pool.Close()

			attempts, err := audit.NewStore(pool).ListByPatient(ctx, email, limit)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), attempts, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "WHEN\tOUTCOME\tSTART\tDOCTOR\tPROCEDURE\tRESERVATION\tERROR")
				for _, at := range attempts {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
						at.CreatedAt.UTC().Format(time.RFC3339), at.Outcome, at.StartsAt.UTC().Format(time.RFC3339),
						at.DoctorID, at.ProcedureID, at.ReservationID, at.Error)
				}
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Patient email")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum rows")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
