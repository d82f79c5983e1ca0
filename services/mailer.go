package services

import (
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"log"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/omegahouses/invoice-api/models"
)

// SMTPConfig is the outbound mail configuration.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Mailer sends the system's outbound mail: registration links, deadline
// reminders, submission reports and invoice PDFs. Delivery is synchronous;
// a failed send surfaces to the caller.
type Mailer struct {
	cfg             SMTPConfig
	frontendAddress string
	managerEmail    string
}

func NewMailer(cfg SMTPConfig, frontendAddress, managerEmail string) *Mailer {
	return &Mailer{cfg: cfg, frontendAddress: frontendAddress, managerEmail: managerEmail}
}

// SendRegistrationLink mails a single-use registration link for an apartment.
// Returns the link so callers can log or display it.
func (m *Mailer) SendRegistrationLink(to, token string, apartment models.Apartment) (string, error) {
	isHungarian := apartment.Language == "h"
	apartmentName := apartment.City + " " + apartment.Street
	link := fmt.Sprintf("https://%s/registerMe?token=%s&ap=%d", m.frontendAddress, token, apartment.ID)
	expires := time.Now().Add(24 * time.Hour).Format("2006.01.02 15:04")

	var subject, body string
	if isHungarian {
		subject = "Véglegesítse az albérlet regisztrációt: " + apartmentName
		body = "Erre a linkre kattintva véglegesítheti a regisztrációt: " + link +
			"\n\nA link 24 óráig érvényes (" + expires + ")\n\nÜdvözlettel:\nIldikó Gerő"
	} else {
		subject = "Complete Your Registration for the apartment: " + apartmentName
		body = "Click the link to complete your registration: " + link +
			"\n\nThe link expires in 24 hours (" + expires + ")\n\nBest regards,\nIldikó Gerő"
	}

	if err := m.send(to, subject, body, "", nil); err != nil {
		return "", err
	}
	return link, nil
}

// SendReminder asks the apartment's tenant to submit this month's readings.
func (m *Mailer) SendReminder(to string, apartment models.Apartment) error {
	isHungarian := apartment.Language == "h"

	var subject, body string
	if isHungarian {
		subject = "Emlékeztető mérőóra diktálásra"
		body = "Ha eddig még nem tette meg, kérem diktálja be a mérőóra állásokat a https://" +
			m.frontendAddress + " oldalon a következő lakáshoz: " + apartment.City + ", " +
			apartment.Street + " a következő 48 órában.\n\nÜdvözlettel:\nGerő Ildikó"
	} else {
		subject = "Reminder: submit meter values"
		body = "If you have not already done so, please record your meter readings on https://" +
			m.frontendAddress + " website for your apartment: " + apartment.City + ", " +
			apartment.Street + " in the next 48 hours.\n\nBest regards,\nIldikó Gerő"
	}

	return m.send(to, subject, body, "", nil)
}

// SendSubmissionReport notifies the property manager that a tenant submitted
// a new reading.
func (m *Mailer) SendSubmissionReport(meter MeterType, value int, apartment models.Apartment) error {
	if m.managerEmail == "" {
		return nil
	}

	isHungarian := apartment.Language == "h"
	var subject, body string
	if isHungarian {
		subject = "Mérő állás bediktálva"
		body = fmt.Sprintf("Új mérőállást diktáltak be a következő ingatlanhoz: %s, %s\nAz új mérőállás: %d a következő mérőóránál: %s",
			apartment.City, apartment.Street, value, meter)
	} else {
		subject = "Meter value submitted"
		body = fmt.Sprintf("A new meter reading was submitted for the following property: %s, %s\nThe new meter value: %d for the meter: %s",
			apartment.City, apartment.Street, value, meter)
	}

	return m.send(m.managerEmail, subject, body, "", nil)
}

// SendInvoicePDF mails the monthly cost summary with the PDF attached.
func (m *Mailer) SendInvoicePDF(to, apartmentAddress, language string, pdf []byte) error {
	isHungarian := language == "h"

	var subject, body string
	if isHungarian {
		subject = "Összefoglaló a költségekről: " + apartmentAddress
		body = "Csatolva küldöm a pdf fájlt, ami tartalmazza a havi költségeket összefoglalva.\n\nÜdvözlettel:\nGerő Ildikó"
	} else {
		subject = "Cost summary: " + apartmentAddress
		body = "Please check the attached pdf file with the summary of the monthly costs.\n\nBest regards,\nIldikó Gerő"
	}

	filename := apartmentAddress + "summary.pdf"
	return m.send(to, subject, body, filename, pdf)
}

// send builds the message (multipart when an attachment is present) and
// delivers it over implicit TLS on port 465 or STARTTLS/plain otherwise.
func (m *Mailer) send(to, subject, body, attachmentName string, attachment []byte) error {
	if m.cfg.Host == "" {
		return fmt.Errorf("SMTP is not configured")
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", m.cfg.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")

	if attachment == nil {
		msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
		msg.WriteString("\r\n")
		msg.WriteString(body)
	} else {
		boundary := "invoice-api-boundary"
		msg.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=%s\r\n", boundary))
		msg.WriteString("\r\n")
		msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
		msg.WriteString("\r\n")
		msg.WriteString(body)
		msg.WriteString("\r\n")
		msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		msg.WriteString("Content-Type: application/pdf\r\n")
		msg.WriteString("Content-Transfer-Encoding: base64\r\n")
		msg.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=%q\r\n", attachmentName))
		msg.WriteString("\r\n")

		encoded := base64.StdEncoding.EncodeToString(attachment)
		for len(encoded) > 76 {
			msg.WriteString(encoded[:76])
			msg.WriteString("\r\n")
			encoded = encoded[76:]
		}
		msg.WriteString(encoded)
		msg.WriteString("\r\n")
		msg.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	}

	msgBytes := []byte(msg.String())

	if m.cfg.Port == 465 {
		return m.sendTLS(addr, to, msgBytes)
	}

	auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, msgBytes); err != nil {
		return fmt.Errorf("SMTP send failed: %v", err)
	}
	log.Printf("Sent email to %s: %s", to, subject)
	return nil
}

// sendTLS handles implicit TLS connections (port 465).
func (m *Mailer) sendTLS(addr, to string, msg []byte) error {
	tlsConfig := &tls.Config{ServerName: m.cfg.Host}

	conn, err := tls.DialWithDialer(&net.Dialer{Timeout: 10 * time.Second}, "tcp", addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("TLS dial failed: %v", err)
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("SMTP client failed: %v", err)
	}
	defer client.Close()

	auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	if err = client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP auth failed: %v", err)
	}

	if err = client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("SMTP MAIL FROM failed: %v", err)
	}
	if err = client.Rcpt(to); err != nil {
		return fmt.Errorf("SMTP RCPT TO failed: %v", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA failed: %v", err)
	}
	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("SMTP write failed: %v", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("SMTP close data failed: %v", err)
	}

	return client.Quit()
}
