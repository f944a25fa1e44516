package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/medagenda/clinic-scheduling/internal/scheduling"
	"github.com/medagenda/clinic-scheduling/pkg/logging"
)

// Service renders and sends appointment confirmations. It satisfies the
// scheduling service's ConfirmationSender.
type Service struct {
	sender EmailSender
	logger *logging.Logger
}

func NewService(sender EmailSender, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{sender: sender, logger: logger}
}

// SendAppointmentConfirmation emails the patient the details of a freshly
// booked appointment.
func (s *Service) SendAppointmentConfirmation(ctx context.Context, detail *scheduling.AppointmentDetail) error {
	if detail.Patient == nil || detail.Practitioner == nil {
		return fmt.Errorf("notify: appointment detail is not hydrated")
	}

	dateLabel := detail.Date.Format("02/01/2006")
	msg := EmailMessage{
		To:      detail.Patient.Email,
		ToName:  detail.Patient.FullName(),
		Subject: fmt.Sprintf("Confirmación de Cita Médica - %s", dateLabel),
		Body:    confirmationBody(detail, dateLabel),
		HTML:    confirmationHTML(detail, dateLabel),
	}

	if err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: send confirmation: %w", err)
	}
	return nil
}

func confirmationBody(d *scheduling.AppointmentDetail, dateLabel string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hola %s,\n\n", d.Patient.FirstName)
	b.WriteString("Su cita ha sido confirmada.\n\n")
	fmt.Fprintf(&b, "Médico:      %s\n", d.Practitioner.DisplayName())
	fmt.Fprintf(&b, "Especialidad: %s\n", d.Practitioner.Specialty)
	fmt.Fprintf(&b, "Fecha:       %s\n", dateLabel)
	fmt.Fprintf(&b, "Hora:        %s\n", d.Start)
	fmt.Fprintf(&b, "Consultorio: %s\n", d.Office)
	fmt.Fprintf(&b, "Motivo:      %s\n\n", d.Reason)
	b.WriteString("Si no puede asistir, cancele con al menos 2 horas de anticipación.\n")
	return b.String()
}

func confirmationHTML(d *scheduling.AppointmentDetail, dateLabel string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Hola %s,</p><p>Su cita ha sido confirmada.</p><ul>", d.Patient.FirstName)
	fmt.Fprintf(&b, "<li><b>Médico:</b> %s</li>", d.Practitioner.DisplayName())
	fmt.Fprintf(&b, "<li><b>Especialidad:</b> %s</li>", d.Practitioner.Specialty)
	fmt.Fprintf(&b, "<li><b>Fecha:</b> %s</li>", dateLabel)
	fmt.Fprintf(&b, "<li><b>Hora:</b> %s</li>", d.Start)
	fmt.Fprintf(&b, "<li><b>Consultorio:</b> %s</li>", d.Office)
	fmt.Fprintf(&b, "</ul><p>Si no puede asistir, cancele con al menos 2 horas de anticipación.</p>")
	return b.String()
}
