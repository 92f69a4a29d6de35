// internal/app/core/notify/notify.go

// Package notify turns student lifecycle changes into notices for the
// guardians bound to that student. Delivery is fire-and-forget: a notice
// that cannot be delivered (guardian offline, connection gone) is logged
// and dropped, never retried, and never fails the operation that
// produced it.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dalemusser/pickuphub/internal/app/core/registry"
	"github.com/dalemusser/pickuphub/internal/app/system/timeouts"
	"github.com/dalemusser/pickuphub/internal/domain/models"
	"github.com/dalemusser/pickuphub/internal/domain/status"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Notifier delivers one message to one recipient over whatever channel the
// implementation owns.
type Notifier interface {
	Deliver(ctx context.Context, recipientID string, msg registry.Message) error
}

// LiveNotifier delivers over the in-process connection registry.
type LiveNotifier struct {
	reg *registry.Registry
}

func NewLiveNotifier(reg *registry.Registry) *LiveNotifier {
	return &LiveNotifier{reg: reg}
}

func (n *LiveNotifier) Deliver(ctx context.Context, recipientID string, msg registry.Message) error {
	if sent := n.reg.SendToRecipient(ctx, recipientID, msg); sent == 0 {
		return fmt.Errorf("recipient %s has no live connections", recipientID)
	}
	return nil
}

// LogNotifier writes notices to the log instead of a transport, for
// development and tests.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Deliver(_ context.Context, recipientID string, msg registry.Message) error {
	n.log.Info("notice",
		zap.String("recipient_id", recipientID),
		zap.String("type", msg.Type),
		zap.Any("payload", msg.Payload))
	return nil
}

// FallbackNotifier tries each notifier in order and stops at the first
// success. Pairing LiveNotifier with LogNotifier means a notice to an
// offline guardian at least lands in the log.
type FallbackNotifier struct {
	chain []Notifier
}

func NewFallbackNotifier(chain ...Notifier) *FallbackNotifier {
	return &FallbackNotifier{chain: chain}
}

func (n *FallbackNotifier) Deliver(ctx context.Context, recipientID string, msg registry.Message) error {
	var err error
	for _, next := range n.chain {
		if err = next.Deliver(ctx, recipientID, msg); err == nil {
			return nil
		}
	}
	return err
}

// GuardianSource resolves which guardians are bound to a student.
type GuardianSource interface {
	GuardianIDsForStudent(ctx context.Context, studentID primitive.ObjectID) ([]primitive.ObjectID, error)
}

// UserSource loads user accounts so the dispatcher can skip invited and
// deactivated guardians.
type UserSource interface {
	ByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
}

// Dispatcher fans lifecycle changes out to a student's active guardians.
type Dispatcher struct {
	notifier Notifier
	links    GuardianSource
	users    UserSource
	log      *zap.Logger

	wg sync.WaitGroup
}

func NewDispatcher(notifier Notifier, links GuardianSource, users UserSource, log *zap.Logger) *Dispatcher {
	return &Dispatcher{notifier: notifier, links: links, users: users, log: log}
}

// statusNotice returns the guardian-facing message for a status the student
// just entered, or "" for statuses guardians are not told about. Only
// ARRIVED, READY_FOR_PICKUP, and HOMEWORK_PENDING carry a notice; the
// guardian at the door does not need a push about the pickup they just
// performed, and departures go to the pickup room instead.
func statusNotice(name string, to status.Status) string {
	switch to {
	case status.Arrived:
		return fmt.Sprintf("%s has arrived safely", name)
	case status.ReadyForPickup:
		return fmt.Sprintf("%s is ready for pickup", name)
	case status.HomeworkPending:
		return fmt.Sprintf("%s is finishing homework; pickup may be delayed", name)
	}
	return ""
}

// StudentStatusChanged notifies the student's active guardians about a
// completed transition. It returns immediately; delivery happens on a
// background goroutine with its own deadline, detached from the request
// that caused the transition.
func (d *Dispatcher) StudentStatusChanged(st models.Student, from, to status.Status) {
	text := statusNotice(st.FullName, to)
	if text == "" {
		return
	}
	msg := registry.Message{
		Type: "student_status",
		Payload: map[string]any{
			"student_id": st.ID.Hex(),
			"from":       string(from),
			"to":         string(to),
			"text":       text,
			"at":         time.Now().UTC().Format(time.RFC3339),
		},
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := timeouts.Within(context.Background(), timeouts.Medium)
		defer cancel()
		d.deliverToGuardians(ctx, st.ID, msg)
	}()
}

func (d *Dispatcher) deliverToGuardians(ctx context.Context, studentID primitive.ObjectID, msg registry.Message) {
	ids, err := d.links.GuardianIDsForStudent(ctx, studentID)
	if err != nil {
		d.log.Warn("notice dropped: cannot resolve guardians",
			zap.String("student_id", studentID.Hex()),
			zap.Error(err))
		return
	}
	if len(ids) == 0 {
		return
	}
	guardians, err := d.users.ByIDs(ctx, ids)
	if err != nil {
		d.log.Warn("notice dropped: cannot load guardian accounts",
			zap.String("student_id", studentID.Hex()),
			zap.Error(err))
		return
	}
	for _, g := range guardians {
		if g.Status != models.AccountActive {
			continue
		}
		if err := d.notifier.Deliver(ctx, g.ID.Hex(), msg); err != nil {
			d.log.Debug("notice dropped",
				zap.String("recipient_id", g.ID.Hex()),
				zap.String("type", msg.Type),
				zap.Error(err))
		}
	}
}

// Wait blocks until in-flight deliveries finish. Called on shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
