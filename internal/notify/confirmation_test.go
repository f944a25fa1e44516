package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medagenda/clinic-scheduling/internal/scheduling"
)

type mockEmailSender struct {
	sent    []EmailMessage
	callErr error
}

func (m *mockEmailSender) Send(_ context.Context, msg EmailMessage) error {
	if m.callErr != nil {
		return m.callErr
	}
	m.sent = append(m.sent, msg)
	return nil
}

func sampleDetail() *scheduling.AppointmentDetail {
	return &scheduling.AppointmentDetail{
		Appointment: scheduling.Appointment{
			ID:     uuid.New(),
			Date:   time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
			Start:  scheduling.NewTimeOfDay(9, 30),
			Reason: "consulta general",
			Office: "Consultorio abc12345",
			Status: scheduling.StatusScheduled,
		},
		Patient: &scheduling.Patient{
			FirstName: "Ana",
			LastName:  "García",
			Email:     "ana@example.com",
		},
		Practitioner: &scheduling.Practitioner{
			FirstName: "Laura",
			LastName:  "Mendoza",
			Specialty: "Cardiología",
		},
	}
}

func TestSendAppointmentConfirmation(t *testing.T) {
	sender := &mockEmailSender{}
	svc := NewService(sender, nil)

	err := svc.SendAppointmentConfirmation(context.Background(), sampleDetail())
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, "ana@example.com", msg.To)
	assert.Equal(t, "Ana García", msg.ToName)
	assert.Equal(t, "Confirmación de Cita Médica - 01/09/2026", msg.Subject)
	assert.Contains(t, msg.Body, "Dr(a). Laura Mendoza")
	assert.Contains(t, msg.Body, "Cardiología")
	assert.Contains(t, msg.Body, "09:30")
	assert.Contains(t, msg.HTML, "Consultorio abc12345")
}

func TestSendAppointmentConfirmationSenderFailure(t *testing.T) {
	sender := &mockEmailSender{callErr: errors.New("smtp down")}
	svc := NewService(sender, nil)

	err := svc.SendAppointmentConfirmation(context.Background(), sampleDetail())
	assert.Error(t, err)
}

func TestSendAppointmentConfirmationUnhydratedDetail(t *testing.T) {
	sender := &mockEmailSender{}
	svc := NewService(sender, nil)

	detail := sampleDetail()
	detail.Patient = nil
	err := svc.SendAppointmentConfirmation(context.Background(), detail)
	assert.Error(t, err)
	assert.Empty(t, sender.sent)
}

func TestStubEmailSender(t *testing.T) {
	stub := NewStubEmailSender(nil)
	err := stub.Send(context.Background(), EmailMessage{To: "a@x.com", Subject: "hola"})
	assert.NoError(t, err)
}
