package main

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"time"

	mqtt "github.com/soypat/natiu-mqtt"
)

var pubFlags, _ = mqtt.NewPublishFlags(mqtt.QoS0, false, false)

// publisher sends channel events to an MQTT broker.
type publisher struct {
	conn   net.Conn
	client *mqtt.Client
	vars   mqtt.VariablesPublish
}

type eventMessage struct {
	Channel   uint8  `json:"channel"`
	Event     string `json:"event"`
	Transfers uint32 `json:"transfers"`
	Allocated uint8  `json:"allocated"`
}

func dialPublisher(addr, topic, clientID string) (*publisher, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	cfg := mqtt.ClientConfig{
		Decoder: mqtt.DecoderNoAlloc{UserBuffer: make([]byte, 4096)},
		OnPub: func(pubHead mqtt.Header, varPub mqtt.VariablesPublish, r io.Reader) error {
			return nil
		},
	}
	var varconn mqtt.VariablesConnect
	varconn.SetDefaultMQTT([]byte(clientID))
	client := mqtt.NewClient(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = client.Connect(ctx, conn, &varconn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &publisher{
		conn:   conn,
		client: client,
		vars:   mqtt.VariablesPublish{TopicName: []byte(topic)},
	}, nil
}

func (p *publisher) publish(msg eventMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	p.conn.SetDeadline(time.Now().Add(5 * time.Second))
	p.vars.PacketIdentifier++
	return p.client.PublishPayload(pubFlags, p.vars, payload)
}

func (p *publisher) Close() error {
	return p.conn.Close()
}
