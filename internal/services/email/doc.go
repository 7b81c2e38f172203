// Package email sends the review and ship request emails.
//
// Mailer is the delivery interface; NewSMTPMailer talks to the relay
// configured under [email], upgrading with STARTTLS when use_tls is set and
// authenticating with PLAIN when a username is configured. ReviewMessage and
// ShipMessage build the two messages the workflow sends.
package email
