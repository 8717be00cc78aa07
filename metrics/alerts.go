// Copyright 2025 The email-checker authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Alert kinds emitted by the engine. The set is small on purpose -
// a dashboard switches on these values.
const (
	AlertDegradation = "degradation"
	AlertDrift       = "drift"
	AlertABComplete  = "abComplete"
	AlertDataQuality = "dataQuality"
)

// Alert is a soft monitoring signal. It never interrupts normal
// operation - consumers poll Recent or subscribe to a channel.
type Alert struct {
	ID       string         `json:"id"`
	Created  time.Time      `json:"created"`
	Kind     string         `json:"kind"`
	Model    string         `json:"model"`
	Severity string         `json:"severity"`
	Message  string         `json:"message"`
	Payload  map[string]any `json:"payload,omitempty"`
}

// Notifier is a bounded alert queue. Publishing never blocks: when
// the retained buffer is full the oldest alert is dropped, and a
// subscriber that cannot keep up misses alerts rather than stalling
// the engine. Alert history lives in memory only - a restart loses it.
type Notifier struct {
	mu   sync.Mutex
	buf  []Alert
	max  int
	subs []chan Alert
}

func NewNotifier(maxRetained int) *Notifier {
	if maxRetained <= 0 {
		maxRetained = 100
	}
	return &Notifier{
		buf: make([]Alert, 0, maxRetained),
		max: maxRetained,
	}
}

// Publish stores the alert and fans it out to subscribers.
func (n *Notifier) Publish(alert Alert) Alert {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if alert.Created.IsZero() {
		alert.Created = time.Now()
	}
	n.mu.Lock()
	if len(n.buf) >= n.max {
		copy(n.buf, n.buf[1:])
		n.buf = n.buf[:len(n.buf)-1]
	}
	n.buf = append(n.buf, alert)
	subs := append([]chan Alert{}, n.subs...)
	n.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub <- alert:
		default:
			log.Warn().Str("alertId", alert.ID).Msg("slow alert subscriber, dropping alert")
		}
	}
	log.Info().
		Str("kind", alert.Kind).
		Str("model", alert.Model).
		Str("severity", alert.Severity).
		Msg(alert.Message)
	return alert
}

// Subscribe returns a channel delivering future alerts. The channel
// buffer must be drained by the consumer.
func (n *Notifier) Subscribe(buffer int) <-chan Alert {
	if buffer <= 0 {
		buffer = 10
	}
	ch := make(chan Alert, buffer)
	n.mu.Lock()
	n.subs = append(n.subs, ch)
	n.mu.Unlock()
	return ch
}

// Recent returns up to limit most recent alerts, newest last.
func (n *Notifier) Recent(limit int) []Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	if limit <= 0 || limit > len(n.buf) {
		limit = len(n.buf)
	}
	ans := make([]Alert, limit)
	copy(ans, n.buf[len(n.buf)-limit:])
	return ans
}
