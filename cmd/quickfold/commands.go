package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/quick-fold/quickfold-customer-app/internal/client"
	"github.com/quick-fold/quickfold-customer-app/internal/domain"
)

type registerFlags struct {
	req client.RegisterRequest
}

func newRegisterCmd() *cobra.Command {
	f := &registerFlags{}

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a QuickFold account and sign in",
		Long: `Create a QuickFold account. Required details missing from the flags
are prompted for; the password is read without echo.`,
		RunE: withDeps(func(cmd *cobra.Command, d *deps) error {
			return runRegister(cmd, d, f)
		}),
	}

	fl := cmd.Flags()
	fl.StringVar(&f.req.FirstName, "first-name", "", "first name")
	fl.StringVar(&f.req.LastName, "last-name", "", "last name")
	fl.StringVar(&f.req.Email, "email", "", "email address")
	fl.StringVar(&f.req.Password, "password", "", "password (prompted when omitted)")
	fl.StringVar(&f.req.Phone, "phone", "", "phone number")
	fl.StringVar(&f.req.AddressStreet, "street", "", "street address")
	fl.StringVar(&f.req.AddressCity, "city", "", "city")
	fl.StringVar(&f.req.AddressState, "state", "", "state")
	fl.StringVar(&f.req.AddressZipCode, "zip", "", "zip code")
	fl.StringVar(&f.req.AddressCountry, "country", "", "country (server default US)")

	return cmd
}

func runRegister(cmd *cobra.Command, d *deps, f *registerFlags) error {
	p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
	req := f.req

	var err error
	if req.FirstName, err = p.text("First name", req.FirstName); err != nil {
		return err
	}
	if req.LastName, err = p.text("Last name", req.LastName); err != nil {
		return err
	}
	if req.Email, err = p.text("Email", req.Email); err != nil {
		return err
	}
	if req.Phone, err = p.text("Phone", req.Phone); err != nil {
		return err
	}
	if req.Password, err = p.password("Password", req.Password); err != nil {
		return err
	}

	res := d.auth.Register(cmd.Context(), req)
	if !res.Success {
		return errors.New(res.Message)
	}
	cmd.Printf("%s. Welcome, %s!\n", res.Message, res.User.FirstName)
	return nil
}

type loginFlags struct {
	email    string
	password string
}

func newLoginCmd() *cobra.Command {
	f := &loginFlags{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		RunE: withDeps(func(cmd *cobra.Command, d *deps) error {
			p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			email, err := p.text("Email", f.email)
			if err != nil {
				return err
			}
			password, err := p.password("Password", f.password)
			if err != nil {
				return err
			}

			res := d.auth.Login(cmd.Context(), email, password)
			if !res.Success {
				return errors.New(res.Message)
			}
			cmd.Printf("%s. Welcome back, %s!\n", res.Message, res.User.FirstName)
			return nil
		}),
	}

	cmd.Flags().StringVar(&f.email, "email", "", "email address")
	cmd.Flags().StringVar(&f.password, "password", "", "password (prompted when omitted)")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the session on this device",
		RunE: withDeps(func(cmd *cobra.Command, d *deps) error {
			res := d.auth.Logout(cmd.Context())
			if !res.Success {
				return errors.New(res.Message)
			}
			cmd.Println(res.Message)
			return nil
		}),
	}
}

func newWhoamiCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in profile stored on this device",
		RunE: withDeps(func(cmd *cobra.Command, d *deps) error {
			if !d.auth.IsAuthenticated(cmd.Context()) {
				return errors.New(client.MsgNotLoggedIn)
			}
			return printProfile(cmd.OutOrStdout(), d.auth.CurrentUser(cmd.Context()), jsonOutput)
		}),
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output profile as JSON")

	return cmd
}

func newRefreshCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Reload the profile from the server",
		RunE: withDeps(func(cmd *cobra.Command, d *deps) error {
			res := d.auth.RefreshUser(cmd.Context())
			if !res.Success {
				return errors.New(res.Message)
			}
			return printProfile(cmd.OutOrStdout(), res.User, jsonOutput)
		}),
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output profile as JSON")

	return cmd
}

func printProfile(w io.Writer, u *domain.User, jsonOutput bool) error {
	if u == nil {
		return errors.New(client.MsgNotLoggedIn)
	}
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(u)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Name:\t%s\n", u.FullName())
	fmt.Fprintf(tw, "Email:\t%s\n", u.Email)
	fmt.Fprintf(tw, "Phone:\t%s\n", u.Phone)
	fmt.Fprintf(tw, "Role:\t%s\n", u.Role)
	if addr := formatAddress(u); addr != "" {
		fmt.Fprintf(tw, "Address:\t%s\n", addr)
	}
	if u.LastLogin != nil {
		fmt.Fprintf(tw, "Last login:\t%s\n", u.LastLogin.Local().Format(time.RFC1123))
	}
	return tw.Flush()
}

func formatAddress(u *domain.User) string {
	var parts []string
	for _, p := range []string{u.AddressStreet, u.AddressCity, u.AddressState, u.AddressZipCode} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	if u.AddressCountry != "" {
		parts = append(parts, u.AddressCountry)
	}
	return strings.Join(parts, ", ")
}

// sessionStatus is what the status command reports.
type sessionStatus struct {
	Server        string     `json:"server"`
	ServerStatus  string     `json:"server_status"`
	ServerError   string     `json:"server_error,omitempty"`
	Breaker       string     `json:"breaker"`
	Authenticated bool       `json:"authenticated"`
	Email         string     `json:"email,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show local session and server health",
		RunE: withDeps(func(cmd *cobra.Command, d *deps) error {
			st := collectStatus(cmd, d)
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			return printStatus(cmd.OutOrStdout(), st)
		}),
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output status as JSON")

	return cmd
}

func collectStatus(cmd *cobra.Command, d *deps) sessionStatus {
	ctx := cmd.Context()
	st := sessionStatus{Server: d.cfg.Server}

	if status, err := d.api.Ready(ctx); err != nil {
		st.ServerStatus = "unreachable"
		st.ServerError = err.Error()
	} else {
		st.ServerStatus = status
	}
	st.Breaker = d.api.BreakerState()

	if d.auth.IsAuthenticated(ctx) {
		st.Authenticated = true
		if u := d.auth.CurrentUser(ctx); u != nil {
			st.Email = u.Email
		}
		if exp, ok := d.auth.SessionExpiry(ctx); ok {
			st.ExpiresAt = &exp
		}
	}
	return st
}

func printStatus(w io.Writer, st sessionStatus) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Server:\t%s (%s)\n", st.Server, st.ServerStatus)
	if st.ServerError != "" {
		fmt.Fprintf(tw, "Error:\t%s\n", st.ServerError)
	}
	fmt.Fprintf(tw, "Breaker:\t%s\n", st.Breaker)
	if !st.Authenticated {
		fmt.Fprintf(tw, "Session:\tnot logged in\n")
		return tw.Flush()
	}
	fmt.Fprintf(tw, "Session:\t%s\n", st.Email)
	if st.ExpiresAt != nil {
		fmt.Fprintf(tw, "Expires:\t%s\n", st.ExpiresAt.Local().Format(time.RFC1123))
	}
	return tw.Flush()
}
