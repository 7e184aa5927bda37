package web

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"net/url"

	"github.com/keithriordan/foyer/internal/server"
	"github.com/keithriordan/foyer/internal/services"
	"github.com/keithriordan/foyer/internal/shared"
)

var errMailerMissing = fmt.Errorf("%w: no mailer configured", shared.ErrServiceUnavailable)

var contactEmail = template.Must(template.New("contact-email").Parse(`<!DOCTYPE html>
<html>
<head><title>Contact Form Submission</title></head>
<body>
  <table width="100%" cellspacing="0" cellpadding="0" style="max-width: 600px; margin: auto;">
    <tr>
      <td style="padding: 20px; text-align: left; font-family: Arial, sans-serif;">
        <h1>Contact Form Submission</h1>
        <p><strong>Name:</strong> {{.Name}}</p>
        <p><strong>Email:</strong> {{.Email}}</p>
        <p><strong>Subject:</strong> {{.Subject}}</p>
        <p><strong>Message:</strong></p>
        <p>{{.Message}}</p>
      </td>
    </tr>
  </table>
</body>
</html>
`))

type contactData struct {
	Form    ContactForm
	Sent    bool
	Problem string
}

func (a *App) home(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusOK, "home", view{Title: "Home", Data: a.Site.Projects})
}

func (a *App) resume(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusOK, "resume", view{Title: "Resume", Data: a.Site.Jobs})
}

func (a *App) contactPage(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusOK, "contact", view{Title: "Contact", Data: contactData{}})
}

func (a *App) contactLimited(w http.ResponseWriter, r *http.Request) {
	a.Logger.Warn("contact form rate limited", "client", server.ClientIP(r))
	a.render(w, r, http.StatusTooManyRequests, "contact", view{
		Title: "Contact",
		Data:  contactData{Form: decodeContactForm(r), Problem: "Too many messages. Please try again later."},
	})
}

func (a *App) sendContact(w http.ResponseWriter, r *http.Request) {
	form := decodeContactForm(r)
	if errs := form.Validate(); len(errs) > 0 {
		a.render(w, r, http.StatusBadRequest, "contact", view{Title: "Contact", Errors: errs, Data: contactData{Form: form}})
		return
	}

	if err := a.mailContact(r, form); err != nil {
		a.Logger.Error("failed to send contact email", "from", form.Email, "err", err)
		a.render(w, r, http.StatusServiceUnavailable, "contact", view{
			Title: "Contact",
			Data:  contactData{Form: form, Problem: "Sorry, your message could not be sent. Please try again later."},
		})
		return
	}

	a.Logger.Info("contact email sent", "from", form.Email)
	a.render(w, r, http.StatusOK, "contact", view{Title: "Contact", Data: contactData{Sent: true}})
}

func (a *App) mailContact(r *http.Request, form ContactForm) error {
	if a.Mailer == nil {
		return errMailerMissing
	}

	var body bytes.Buffer
	if err := contactEmail.Execute(&body, form); err != nil {
		return err
	}

	sendgrid := a.Config.Credentials.SendGrid
	return a.Mailer.Send(r.Context(), services.Message{
		From:    sendgrid.From,
		To:      sendgrid.To,
		Subject: "New message from " + form.Name + " at " + form.Email,
		HTML:    body.String(),
	})
}

type loginData struct {
	Form LoginForm
}

func (a *App) loginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := server.CurrentUser(r.Context()); ok {
		a.redirect(w, r, "/")
		return
	}
	form := LoginForm{Next: r.URL.Query().Get("next")}
	a.render(w, r, http.StatusOK, "login", view{Title: "Sign In", Data: loginData{Form: form}})
}

func (a *App) login(w http.ResponseWriter, r *http.Request) {
	form := decodeLoginForm(r)
	if errs := form.Validate(); len(errs) > 0 {
		form.Password = ""
		a.render(w, r, http.StatusBadRequest, "login", view{Title: "Sign In", Errors: errs, Data: loginData{Form: form}})
		return
	}

	user, err := a.Repos.Users.GetByEmail(form.Email)
	if err != nil || !user.CheckPassword(form.Password) {
		a.Logger.Warn("failed login", "email", form.Email)
		a.flash(w, r, server.FlashDanger, "Invalid username or password")
		target := "/login"
		if form.Next != "" {
			target += "?next=" + url.QueryEscape(form.Next)
		}
		a.redirect(w, r, target)
		return
	}

	if err := a.Sessions.Login(w, user, form.Remember); err != nil {
		a.fail(w, r, err)
		return
	}
	a.Logger.Info("login", "user", user.ID, "remember", form.Remember)
	a.redirect(w, r, server.SafeNext(form.Next))
}

func (a *App) logout(w http.ResponseWriter, r *http.Request) {
	a.Sessions.Logout(w)
	a.redirect(w, r, "/")
}
