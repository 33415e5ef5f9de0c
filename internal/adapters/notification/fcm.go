// Package notification implements the push and email gateways.
package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
	fcm "google.golang.org/api/fcm/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/AchilleasB/inrem/pulse-service/internal/config"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/ports"
)

const defaultMulticastConcurrency = 8

// FCMGateway sends pushes through the Firebase Cloud Messaging HTTP v1 API.
type FCMGateway struct {
	service     *fcm.Service
	parent      string
	cb          *gobreaker.CircuitBreaker
	concurrency int
}

var _ ports.PushGateway = (*FCMGateway)(nil)

func NewFCMGateway(ctx context.Context, projectID, credentialsPath string, concurrency int) (*FCMGateway, error) {
	if _, err := os.Stat(credentialsPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("fcm credentials not found at path: %s", credentialsPath)
	}
	return newFCMGateway(ctx, projectID, concurrency, option.WithCredentialsFile(credentialsPath))
}

func newFCMGateway(ctx context.Context, projectID string, concurrency int, opts ...option.ClientOption) (*FCMGateway, error) {
	svc, err := fcm.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create fcm client: %w", err)
	}
	if concurrency <= 0 {
		concurrency = defaultMulticastConcurrency
	}
	return &FCMGateway{
		service:     svc,
		parent:      "projects/" + projectID,
		cb:          config.NewCircuitBreaker(config.BreakerFCM),
		concurrency: concurrency,
	}, nil
}

func (g *FCMGateway) SendPush(ctx context.Context, token string, msg ports.PushMessage) error {
	var unregistered bool
	_, err := g.cb.Execute(func() (interface{}, error) {
		_, err := g.service.Projects.Messages.
			Send(g.parent, &fcm.SendMessageRequest{Message: toFCMMessage(token, msg)}).
			Context(ctx).
			Do()
		if isUnregistered(err) {
			// A dead token says nothing about FCM's health.
			unregistered = true
			return nil, nil
		}
		return nil, err
	})
	if unregistered {
		return domain.ErrUnregisteredToken
	}
	if err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	return nil
}

// SendMulticast fans out one send per token with bounded concurrency.
func (g *FCMGateway) SendMulticast(ctx context.Context, tokens []string, msg ports.PushMessage) ports.MulticastResult {
	var (
		mu  sync.Mutex
		res ports.MulticastResult
		eg  errgroup.Group
	)
	eg.SetLimit(g.concurrency)

	for _, token := range tokens {
		eg.Go(func() error {
			err := g.SendPush(ctx, token, msg)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				res.SuccessCount++
				return nil
			}
			res.FailureCount++
			res.FailedTokens = append(res.FailedTokens, token)
			if errors.Is(err, domain.ErrUnregisteredToken) {
				res.UnregisteredTokens = append(res.UnregisteredTokens, token)
			}
			return nil
		})
	}
	_ = eg.Wait()
	return res
}

func toFCMMessage(token string, msg ports.PushMessage) *fcm.Message {
	m := &fcm.Message{
		Token: token,
		Notification: &fcm.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
	}
	if msg.Data["severity"] == "HIGH" {
		m.Android = &fcm.AndroidConfig{Priority: "HIGH"}
		m.Apns = &fcm.ApnsConfig{Headers: map[string]string{"apns-priority": "10"}}
	}
	return m
}

// isUnregistered recognises FCM's answer for tokens that will never work
// again: 404 NOT_FOUND, or an UNREGISTERED error code in the details.
func isUnregistered(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code == http.StatusNotFound {
		return true
	}
	return strings.Contains(apiErr.Body, "UNREGISTERED")
}
