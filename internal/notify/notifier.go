// Package notify delivers state-transition notifications to users via AWS
// SES (email) and SNS (SMS). Delivery is fire-and-forget: the engines
// enqueue and move on, and a failed send is logged and counted but never
// rolls back the transition that raised it.
package notify

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/naalis/influfinder/internal/common/config"
	"github.com/naalis/influfinder/internal/common/logger"
	"github.com/naalis/influfinder/internal/common/metrics"
	"github.com/naalis/influfinder/internal/models"
)

// Notifier accepts delivery requests keyed by recipient and event type.
type Notifier interface {
	Notify(userID string, event models.EventType, data map[string]interface{})
}

// Define interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type envelope struct {
	userID string
	event  models.EventType
	data   map[string]interface{}
}

// AWSNotifier is the SES/SNS-backed Notifier. Requests pass through a
// bounded queue drained by a background worker; when the queue is full the
// request is dropped with a warning rather than blocking the caller.
type AWSNotifier struct {
	cfg       config.NotificationConfig
	db        *sql.DB
	sesClient SESService
	snsClient SNSService
	logger    logger.Logger
	queue     chan envelope
	closeOnce sync.Once
	done      chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAWSNotifier builds the notifier with real AWS clients.
func NewAWSNotifier(ctx context.Context, cfg config.NotificationConfig, db *sql.DB, log logger.Logger) (*AWSNotifier, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewWithClients(cfg, db, ses.NewFromConfig(awsCfg), sns.NewFromConfig(awsCfg), log), nil
}

// NewWithClients builds the notifier with injected SES/SNS clients.
func NewWithClients(cfg config.NotificationConfig, db *sql.DB, sesClient SESService, snsClient SNSService, log logger.Logger) *AWSNotifier {
	n := &AWSNotifier{
		cfg:       cfg,
		db:        db,
		sesClient: sesClient,
		snsClient: snsClient,
		logger:    log.WithFields(map[string]interface{}{"component": "notifier"}),
		queue:     make(chan envelope, cfg.QueueSize),
		done:      make(chan struct{}),
	}
	go n.run()
	return n
}

// Notify enqueues a delivery request. It never blocks and never fails;
// requests arriving after Close are dropped.
func (n *AWSNotifier) Notify(userID string, event models.EventType, data map[string]interface{}) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		metrics.NotificationsDispatched.WithLabelValues(string(event), "dropped").Inc()
		n.logger.Warn("notifier closed, dropping", map[string]interface{}{
			"userId": userID,
			"event":  string(event),
		})
		return
	}
	select {
	case n.queue <- envelope{userID: userID, event: event, data: data}:
	default:
		metrics.NotificationsDispatched.WithLabelValues(string(event), "dropped").Inc()
		n.logger.Warn("notification queue full, dropping", map[string]interface{}{
			"userId": userID,
			"event":  string(event),
		})
	}
}

// Close drains the queue and stops the worker. The closed flag is flipped
// under the write lock, so no Notify can be mid-send when the queue
// channel closes.
func (n *AWSNotifier) Close() {
	n.closeOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		n.mu.Unlock()
		close(n.queue)
		<-n.done
	})
}

func (n *AWSNotifier) run() {
	defer close(n.done)
	for env := range n.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		n.deliver(ctx, env)
		cancel()
	}
}

func (n *AWSNotifier) deliver(ctx context.Context, env envelope) {
	email, phone, err := n.recipientContact(ctx, env.userID)
	if err != nil {
		metrics.NotificationsDispatched.WithLabelValues(string(env.event), "skipped").Inc()
		n.logger.Warn("recipient not found", map[string]interface{}{
			"userId": env.userID,
			"event":  string(env.event),
		})
		return
	}

	tmpl, ok := templates[env.event]
	if !ok {
		metrics.NotificationsDispatched.WithLabelValues(string(env.event), "skipped").Inc()
		n.logger.Warn("no template for event", map[string]interface{}{"event": string(env.event)})
		return
	}

	subject := renderTemplate(tmpl.subject, env.data)
	body := renderTemplate(tmpl.body, env.data)

	sent := false
	if n.cfg.EmailEnabled && email != "" {
		if err := n.sendEmail(ctx, email, subject, body); err != nil {
			metrics.NotificationsDispatched.WithLabelValues(string(env.event), "failed").Inc()
			n.logger.Error("email send failed", map[string]interface{}{
				"error": err,
				"event": string(env.event),
			})
		} else {
			sent = true
		}
	}

	if n.cfg.SMSEnabled && phone != "" && tmpl.highPriority {
		if err := n.sendSMS(ctx, phone, body); err != nil {
			metrics.NotificationsDispatched.WithLabelValues(string(env.event), "failed").Inc()
			n.logger.Error("SMS send failed", map[string]interface{}{
				"error": err,
				"event": string(env.event),
			})
		} else {
			sent = true
		}
	}

	if sent {
		metrics.NotificationsDispatched.WithLabelValues(string(env.event), "sent").Inc()
	}
}

func (n *AWSNotifier) recipientContact(ctx context.Context, userID string) (email, phone string, err error) {
	var phoneCol sql.NullString
	err = n.db.QueryRowContext(ctx,
		`SELECT email, phone FROM users WHERE id = $1`, userID,
	).Scan(&email, &phoneCol)
	if err != nil {
		return "", "", err
	}
	return email, phoneCol.String, nil
}

func (n *AWSNotifier) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := n.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(n.cfg.FromEmail),
		Destination: &types.Destination{ToAddresses: []string{to}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body:    &types.Body{Text: &types.Content{Data: aws.String(body)}},
		},
	})
	return err
}

func (n *AWSNotifier) sendSMS(ctx context.Context, phone, body string) error {
	_, err := n.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(body),
	})
	return err
}

// renderTemplate substitutes {{key}} placeholders from data.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	out := tmpl
	for k, v := range data {
		out = strings.ReplaceAll(out, "{{"+k+"}}", fmt.Sprintf("%v", v))
	}
	return out
}
