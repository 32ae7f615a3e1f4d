package hub

import (
	"context"

	"accel-dashboard/models"
	"accel-dashboard/services/ingest"
	"accel-dashboard/services/transport"
	"accel-dashboard/utils"
)

// BridgeMQTT subscribes to the device topic and ingests every message.
// The subscription ends when ctx is cancelled.
func (s *Server) BridgeMQTT(ctx context.Context) (transport.Subscription, error) {
	m := s.cfg.MQTT
	sub := &transport.MQTTSubscriber{
		Broker:   m.Broker,
		Topic:    m.Topic,
		Username: m.Username,
		Password: m.Password,
		QoS:      m.QoS,
	}
	enc := models.Encoding(m.Encoding)
	log := utils.L().With("mqtt-bridge")
	return sub.Subscribe(ctx, func(data []byte) {
		if err := s.IngestPayload(data, enc, "mqtt"); err != nil {
			log.Warn("%v", &transport.Error{Op: "decode", Err: err})
		}
	})
}

// RunSimulation feeds simulated samples into the hub until the
// simulator's output closes.
func (s *Server) RunSimulation(ctx context.Context, sim *ingest.AccelSimulator) {
	sim.Start(ctx)
	for sample := range sim.Out {
		s.Ingest(sample, "simulation")
	}
}
