package stream

import (
	"encoding/json"
	"log"

	"github.com/eclipse/paho.mqtt.golang"

	"github.com/matt-g-everett/ugoiratx/ugoira"
)

type sendFunc func(topic string, payload []byte) error

// Streamer publishes job progress and results over MQTT.
type Streamer struct {
	config Config
	send   sendFunc
}

// NewStreamer creates an instance of a Streamer.
func NewStreamer(config Config, client mqtt.Client) *Streamer {
	qos := config.Mqtt.Qos
	return newStreamer(config, func(topic string, payload []byte) error {
		token := client.Publish(topic, qos, false, payload)
		token.Wait()
		return token.Error()
	})
}

func newStreamer(config Config, send sendFunc) *Streamer {
	s := new(Streamer)
	s.config = config
	s.send = send
	return s
}

// Progress returns a sink that publishes each report for job id.
func (s *Streamer) Progress(id string) ugoira.ProgressSink {
	return ugoira.ProgressFunc(func(p ugoira.Progress) {
		s.publish(s.config.Mqtt.Topics.Progress, ProgressMessage{
			ID:       id,
			Frame:    p.Frame,
			Total:    p.Total,
			Progress: p.Fraction,
		})
	})
}

// SendResult publishes the outcome of a job.
func (s *Streamer) SendResult(r ResultMessage) {
	s.publish(s.config.Mqtt.Topics.Results, r)
}

func (s *Streamer) publish(topic string, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("Marshal %T: %v", v, err)
		return
	}
	if err := s.send(topic, b); err != nil {
		log.Printf("Publish to %s failed: %v", topic, err)
	}
}
