// Package notify sends push notifications to the driver app.
package notify

import (
	"context"
	"fmt"
	"strconv"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-dispatch/internal/models"
)

// Sender is the part of *messaging.Client the notifier needs.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMNotifier pushes mission assignments through Firebase Cloud Messaging.
type FCMNotifier struct {
	sender Sender
}

// NewFCMNotifier gets the messaging client of app.
func NewFCMNotifier(ctx context.Context, app *firebase.App) (*FCMNotifier, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Messaging client: %w", err)
	}
	return NewNotifier(client), nil
}

// NewNotifier wraps a Sender.
func NewNotifier(sender Sender) *FCMNotifier {
	return &FCMNotifier{sender: sender}
}

// NotifyAssignment tells a driver a mission was assigned to them. Drivers
// without a registered device are skipped.
func (n *FCMNotifier) NotifyAssignment(ctx context.Context, driver *models.Driver, mission *models.Mission) error {
	if driver == nil || driver.FCMToken == "" {
		return nil
	}

	message := &messaging.Message{
		Token: driver.FCMToken,
		Data: map[string]string{
			"type":          "mission_assigned",
			"mission_id":    strconv.FormatInt(mission.ID, 10),
			"reference":     mission.Reference,
			"status":        string(mission.Status),
			"date_expected": mission.DateExpected.UTC().Format("2006-01-02T15:04:05Z"),
		},
		Notification: &messaging.Notification{
			Title: "New mission",
			Body:  fmt.Sprintf("%s - %s", mission.Reference, mission.Address),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
	}

	response, err := n.sender.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("error sending Firebase message: %w", err)
	}
	log.WithFields(log.Fields{
		"driver_id":  driver.ID,
		"mission_id": mission.ID,
		"message_id": response,
	}).Debug("Sent assignment notification")
	return nil
}
