// MQTT scan event publisher
//
// Copyright 2026 The gqrx-scanner Authors.
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package mqttpub publishes scan events to an MQTT broker.
package mqttpub

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"gqrx-scanner/internal/scanner"
)

const DefaultTopicPrefix = "gqrx-scanner"

// Config holds the broker settings.
type Config struct {
	Broker      string // e.g. tcp://localhost:1883
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
	Retain      bool
}

// Message is the JSON payload of a scan event.
type Message struct {
	Event         string    `json:"event"`
	Frequency     int64     `json:"frequency"`
	FrequencyText string    `json:"frequency_text"`
	Level         *float64  `json:"level,omitempty"`
	Threshold     *float64  `json:"threshold,omitempty"`
	Source        string    `json:"source"`
	Reason        string    `json:"reason,omitempty"`
	DurationMs    int64     `json:"duration_ms,omitempty"`
	Bookmark      string    `json:"bookmark,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	Time          time.Time `json:"time"`
	Stamp         string    `json:"stamp"`
}

// NewMessage builds the payload for e.
func NewMessage(e scanner.Event) Message {
	m := Message{
		Event:         e.Kind.String(),
		Frequency:     e.Target.Frequency,
		FrequencyText: scanner.FormatFrequency(e.Target.Frequency),
		Source:        e.Source.String(),
		Time:          e.Time,
		Stamp:         e.Stamp,
	}
	if b := e.Target.Bookmark; b != nil {
		m.Bookmark = b.Name
		m.Tags = b.Tags
	}
	switch e.Kind {
	case scanner.EventActive:
		level, threshold := e.Level, e.Threshold
		m.Level = &level
		m.Threshold = &threshold
	case scanner.EventInactive:
		m.Reason = e.Reason.String()
		m.DurationMs = e.Duration.Milliseconds()
	}
	return m
}

// Topic returns the topic e is published to: <prefix>/<event>.
func Topic(prefix string, e scanner.Event) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return prefix + "/" + e.Kind.String()
}

// Publisher is a scanner.Notifier that publishes every event.
type Publisher struct {
	client mqtt.Client
	config Config
}

// New connects to the broker. A broker that cannot be reached within the
// connect timeout is not an error; the client keeps retrying in the
// background.
func New(config Config) (*Publisher, error) {
	if config.Broker == "" {
		return nil, fmt.Errorf("missing MQTT broker")
	}
	if config.QoS > 2 {
		return nil, fmt.Errorf("invalid MQTT QoS: %d", config.QoS)
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID("gqrx-scanner-" + uuid.NewString())
	if config.Username != "" {
		opts.SetUsername(config.Username)
	}
	if config.Password != "" {
		opts.SetPassword(config.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(5 * time.Second)

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Printf("[INFO] MQTT connected to %s", config.Broker)
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("[WARN] MQTT connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	log.Printf("[INFO] MQTT connecting to %s", config.Broker)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		log.Printf("[WARN] MQTT connection to %s timed out, retrying in background", config.Broker)
	} else if err := token.Error(); err != nil {
		log.Printf("[WARN] MQTT connection to %s failed: %v, retrying in background", config.Broker, err)
	}

	return &Publisher{client: client, config: config}, nil
}

// Notify publishes e without waiting for the broker.
func (p *Publisher) Notify(e scanner.Event) {
	if !p.client.IsConnected() {
		log.Printf("[DEBUG] MQTT not connected, dropping %s event", e.Kind)
		return
	}

	data, err := json.Marshal(NewMessage(e))
	if err != nil {
		log.Printf("[ERROR] MQTT marshal %s event: %v", e.Kind, err)
		return
	}

	topic := Topic(p.config.TopicPrefix, e)
	token := p.client.Publish(topic, p.config.QoS, p.config.Retain, data)
	go func() {
		if token.Wait() && token.Error() != nil {
			log.Printf("[WARN] MQTT publish to %s: %v", topic, token.Error())
		} else {
			log.Printf("[DEBUG] MQTT published to %s", topic)
		}
	}()
}

// Close disconnects from the broker, waiting briefly for pending messages.
func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
		log.Println("[INFO] MQTT disconnected")
	}
}
