package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kalanithib94/eyeDocs-KTP/internal/client"
	"github.com/kalanithib94/eyeDocs-KTP/internal/config"
	"github.com/kalanithib94/eyeDocs-KTP/pkg/apiclient"
)

// app holds what every subcommand needs. It is built in PersistentPreRunE.
type app struct {
	cfg    *config.ClientConfig
	logger zerolog.Logger
	store  *client.Store
	api    *apiclient.Client
	bus    *client.Bus
	out    io.Writer
}

func main() {
	root, closeState := newRootCmd(os.Stdout)
	err := root.Execute()
	if cerr := closeState(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. The returned func closes the state file
// opened by whichever command ran.
func newRootCmd(out io.Writer) (*cobra.Command, func() error) {
	a := &app{out: out}
	var debug bool

	root := &cobra.Command{
		Use:           "referral-cli",
		Short:         "Submit and track referrals against a ReferralFlow Connect server",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(debug)
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		a.loginCmd(),
		a.logoutCmd(),
		a.referralCmd(),
		a.dashboardCmd(),
		a.draftCmd(),
		a.statusCmd(),
	)
	return root, a.close
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

func (a *app) init(debug bool) error {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	a.logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	a.cfg = cfg

	store, err := client.OpenStore(cfg.StateFile)
	if err != nil {
		return err
	}
	a.store = store

	a.api = apiclient.New(cfg.APIURL,
		apiclient.WithTimeout(cfg.Timeout),
		apiclient.WithRetry(cfg.RetryAttempts, cfg.RetryDelay),
		apiclient.WithTokenSource(store),
		apiclient.WithLogger(a.logger),
	)

	a.bus = client.NewBus()
	client.Subscribe(a.bus, func(ev client.SubmitFailed) {
		a.logger.Debug().Str("event", ev.EventName()).Msg(ev.Message)
	})
	client.Subscribe(a.bus, func(ev client.SampleDataSubstituted) {
		a.logger.Warn().Str("widget", ev.Widget).Err(ev.Err).Msg("server unavailable, showing sample data")
	})
	return nil
}

func (a *app) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *app) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("REFERRAL_PASSWORD")
			}
			res, err := a.api.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			if err := a.store.SaveSession(res.Token, res.User); err != nil {
				return err
			}
			a.printf("Logged in as %s (%s)\n", res.User.Email, res.User.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (or REFERRAL_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session token and forget it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.api.Logout(cmd.Context()); err != nil && !apiclient.IsUnauthorized(err) {
				a.logger.Warn().Err(err).Msg("server logout failed")
			}
			if err := a.store.ClearSession(); err != nil {
				return err
			}
			a.printf("Logged out\n")
			return nil
		},
	}
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server health and the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			health, err := a.api.Health(ctx)
			if err != nil {
				a.printf("server:     unreachable (%v)\n", err)
			} else {
				a.printf("server:     %s (version %s)\n", health.Status, health.Version)
			}

			user, err := a.store.User()
			if err != nil || user == nil {
				a.printf("session:    not logged in\n")
				return nil
			}
			if _, err := a.api.ValidateToken(ctx); err != nil {
				a.printf("session:    %s (expired)\n", user.Email)
				return nil
			}
			a.printf("session:    %s (%s)\n", user.Email, user.Role)
			return nil
		},
	}
}

func (a *app) referralCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "referral",
		Short: "Submit and list referrals",
	}
	cmd.AddCommand(a.referralSubmitCmd(), a.referralListCmd())
	return cmd
}

func readForm(path string) (*apiclient.Referral, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	form := &apiclient.Referral{}
	if err := json.NewDecoder(r).Decode(form); err != nil {
		return nil, fmt.Errorf("read form: %w", err)
	}
	return form, nil
}

func addFormFlags(cmd *cobra.Command, form *apiclient.Referral) {
	f := cmd.Flags()
	f.StringVar(&form.FirstName, "first-name", "", "Patient first name")
	f.StringVar(&form.LastName, "last-name", "", "Patient last name")
	f.StringVar(&form.Email, "email", "", "Patient email")
	f.StringVar(&form.Phone, "phone", "", "Patient phone")
	f.StringVar(&form.DateOfBirth, "dob", "", "Date of birth (YYYY-MM-DD)")
	f.StringVar(&form.Postcode, "postcode", "", "Postcode")
	f.StringVar(&form.NHSNumber, "nhs-number", "", "NHS number")
	f.StringVar(&form.Condition, "condition", "", "Presenting condition")
	f.StringVar(&form.OpticianID, "optician", "", "Referring optician id")
	f.StringVar(&form.Urgency, "urgency", "", "Urgency (routine, urgent, emergency)")
	f.StringVar(&form.ClinicalNotes, "notes", "", "Clinical notes")
	f.BoolVar(&form.Consent, "consent", false, "Patient consent recorded")
	f.BoolVar(&form.GDPRConsent, "gdpr", false, "GDPR consent recorded")
}

func (a *app) referralSubmitCmd() *cobra.Command {
	var file, draft string
	flagForm := &apiclient.Referral{}

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Validate and submit a referral",
		RunE: func(cmd *cobra.Command, args []string) error {
			form := flagForm
			switch {
			case file != "":
				f, err := readForm(file)
				if err != nil {
					return err
				}
				form = f
			case draft != "":
				d, err := a.store.LoadDraft(draft)
				if err != nil {
					return err
				}
				form = d.Form
			}

			o := client.NewFormOrchestrator(a.api, a.bus, a.store, a.logger)
			res, err := o.Submit(cmd.Context(), form, draft)
			if err != nil {
				var fe *client.FormError
				if errors.As(err, &fe) {
					a.printFieldErrors(fe.Fields)
					return errors.New("referral not submitted")
				}
				return errors.New(client.FailureMessage(err))
			}

			a.printf("Referral %s submitted\n", res.Referral.ReferralNumber)
			if s := res.Salesforce; s != nil {
				switch {
				case s.Success:
					a.printf("Salesforce: %s (%s)\n", s.SalesforceID, s.Mode)
				default:
					a.printf("Salesforce: not synced (%s)\n", s.Error)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the form as JSON from a file, or - for stdin")
	cmd.Flags().StringVar(&draft, "draft", "", "Submit a saved draft and clear it on success")
	addFormFlags(cmd, flagForm)
	return cmd
}

func (a *app) printFieldErrors(fields map[string]string) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		a.printf("  %-16s %s\n", k, fields[k])
	}
}

func (a *app) referralListCmd() *cobra.Command {
	var limit, offset int
	var status, urgency, query string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List referrals",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := apiclient.ListOptions{Limit: limit, Offset: offset, Filters: map[string]string{}}
			if status != "" {
				opts.Filters["status"] = status
			}
			if urgency != "" {
				opts.Filters["urgency"] = urgency
			}

			var (
				list *apiclient.List[*apiclient.Referral]
				err  error
			)
			if query != "" {
				list, err = a.api.SearchReferrals(cmd.Context(), query, opts)
			} else {
				list, err = a.api.ListReferrals(cmd.Context(), opts)
			}
			if err != nil {
				return err
			}
			a.printReferrals(list.Data)
			a.printf("%d of %d\n", len(list.Data), list.Total)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "Page offset")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().StringVar(&urgency, "urgency", "", "Filter by urgency")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Free-text search")
	return cmd
}

func (a *app) printReferrals(refs []*apiclient.Referral) {
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NUMBER\tPATIENT\tCONDITION\tURGENCY\tSTATUS\tSALESFORCE")
	for _, r := range refs {
		sf := r.SalesforceID
		if sf == "" {
			sf = "-"
		}
		name := r.PatientName
		if name == "" {
			name = r.FirstName + " " + r.LastName
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ReferralNumber, name, r.Condition, r.Urgency, r.Status, sf)
	}
	w.Flush()
}

func (a *app) dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show referral stats, recent referrals and Salesforce status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Timeout)
			defer cancel()

			data := client.NewDashboard(a.api, a.bus, nil, a.logger).Load(ctx)
			a.renderDashboard(data)
			return nil
		},
	}
}

func (a *app) renderDashboard(data *client.DashboardData) {
	sample := func(b bool) string {
		if b {
			return " (sample data)"
		}
		return ""
	}

	s := data.Stats
	a.printf("Referrals%s\n", sample(data.SampleStats))
	a.printf("  total %d  new %d  under review %d  scheduled %d  completed %d\n",
		s.Total, s.New, s.UnderReview, s.Scheduled, s.Completed)
	a.printf("  synced %d  unsynced %d  simulated %d\n\n", s.Synced, s.Unsynced, s.Simulated)

	a.printf("Recent referrals%s\n", sample(data.SampleRecent))
	a.printReferrals(data.Recent)

	a.printf("\nSalesforce\n")
	if sf := data.Salesforce; sf != nil {
		a.printf("  connected %t  mode %s\n", sf.Connected, sf.Mode)
	} else {
		a.printf("  unavailable\n")
	}
}

func (a *app) draftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Save, show and clear unsent referral forms",
	}

	var file string
	form := &apiclient.Referral{}
	save := &cobra.Command{
		Use:   "save NAME",
		Short: "Save a form as a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := form
			if file != "" {
				var err error
				if f, err = readForm(file); err != nil {
					return err
				}
			}
			d, err := a.store.SaveDraft(args[0], f)
			if err != nil {
				return err
			}
			a.printf("Draft %q saved at %s\n", d.Name, d.SavedAt.Format(time.RFC3339))
			return nil
		},
	}
	save.Flags().StringVarP(&file, "file", "f", "", "Read the form as JSON from a file, or - for stdin")
	addFormFlags(save, form)

	load := &cobra.Command{
		Use:   "load [NAME]",
		Short: "Print a draft as JSON, or list drafts when no name is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				drafts, err := a.store.ListDrafts()
				if err != nil {
					return err
				}
				for _, d := range drafts {
					a.printf("%-20s %s\n", d.Name, d.SavedAt.Format(time.RFC3339))
				}
				return nil
			}
			d, err := a.store.LoadDraft(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(a.out)
			enc.SetIndent("", "  ")
			return enc.Encode(d.Form)
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear NAME",
		Short: "Delete a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.ClearDraft(args[0]); err != nil {
				return err
			}
			a.printf("Draft %q cleared\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(save, load, clearCmd)
	return cmd
}
