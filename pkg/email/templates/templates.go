// Package templates holds the HTML bodies of transactional emails as templ components.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// Render renders a component to a string.
func Render(ctx context.Context, tpl templ.Component) (string, error) {
	var sb strings.Builder
	if err := tpl.Render(ctx, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Reason selects the wording of a one-time code email.
type Reason string

const (
	ReasonVerify Reason = "verify"
	ReasonReset  Reason = "reset"
)

type OTPData struct {
	AppName    string
	Name       string
	Code       string
	Reason     Reason
	TTLMinutes int
}

// OTPCode renders the one-time code email.
func OTPCode(d OTPData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		intro := "Use the code below to verify your email address."
		if d.Reason == ReasonReset {
			intro = "We received a request to reset your password. Use the code below to continue."
		}
		name := d.Name
		if name == "" {
			name = "there"
		}

		return layout(w, d.AppName, func(w io.Writer) error {
			_, err := fmt.Fprintf(w,
				`<p>Hi %s,</p><p>%s</p><p style="font-size:28px;letter-spacing:6px;font-weight:bold">%s</p><p>The code expires in %d minutes. If you did not request it, you can ignore this email.</p>`,
				templ.EscapeString(name),
				templ.EscapeString(intro),
				templ.EscapeString(d.Code),
				d.TTLMinutes,
			)
			return err
		})
	})
}

type InviteData struct {
	AppName     string
	InviterName string
	TargetKind  string // "project" or "team"
	TargetName  string
	Role        string
	Link        string
	QRDataURI   string
	TTLHours    int
}

// Invite renders a project or team invitation with a link and an optional QR code.
func Invite(d InviteData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return layout(w, d.AppName, func(w io.Writer) error {
			if _, err := fmt.Fprintf(w,
				`<p>%s invited you to join the %s <strong>%s</strong> as %s.</p><p><a href="%s">Accept invitation</a></p>`,
				templ.EscapeString(d.InviterName),
				templ.EscapeString(d.TargetKind),
				templ.EscapeString(d.TargetName),
				templ.EscapeString(d.Role),
				templ.EscapeString(string(templ.URL(d.Link))),
			); err != nil {
				return err
			}
			if strings.HasPrefix(d.QRDataURI, "data:image/png;base64,") {
				if _, err := fmt.Fprintf(w, `<p><img alt="Invitation QR code" width="160" height="160" src="%s"></p>`, templ.EscapeString(d.QRDataURI)); err != nil {
					return err
				}
			}
			if d.TTLHours <= 0 {
				return nil
			}
			_, err := fmt.Fprintf(w, `<p>The invitation expires in %s.</p>`, expiresIn(d.TTLHours))
			return err
		})
	})
}

func expiresIn(hours int) string {
	switch {
	case hours%24 == 0 && hours > 24:
		return fmt.Sprintf("%d days", hours/24)
	case hours == 24:
		return "1 day"
	case hours == 1:
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", hours)
}

func layout(w io.Writer, appName string, body func(io.Writer) error) error {
	if appName == "" {
		appName = "Taskflow"
	}
	if _, err := fmt.Fprintf(w, `<!DOCTYPE html><html><body style="font-family:sans-serif"><h2>%s</h2>`, templ.EscapeString(appName)); err != nil {
		return err
	}
	if err := body(w); err != nil {
		return err
	}
	_, err := io.WriteString(w, `</body></html>`)
	return err
}
