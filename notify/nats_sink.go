package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"visittrack/api/models"
)

// NATSSink publishes notifications to NATS subjects of the form
//
//	{prefix}.{salespersonId}.{kind}
//
// so a salesperson's UI can subscribe to {prefix}.{salespersonId}.>.
type NATSSink struct {
	nc     *nats.Conn
	prefix string
}

func NewNATSSink(nc *nats.Conn, prefix string) *NATSSink {
	if prefix == "" {
		prefix = "visits"
	}
	return &NATSSink{nc: nc, prefix: prefix}
}

func (s *NATSSink) Subject(n models.Notification) string {
	return fmt.Sprintf("%s.%s.%s", s.prefix, n.SalespersonID, n.Kind)
}

func (s *NATSSink) Deliver(_ context.Context, n models.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := s.nc.Publish(s.Subject(n), data); err != nil {
		return fmt.Errorf("publish %s notification: %w", n.Kind, err)
	}
	return nil
}
