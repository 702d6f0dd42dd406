package api

import (
	"net/http"
	"time"

	"github.com/nerrad567/probekit/internal/format"
	"github.com/nerrad567/probekit/internal/mqtttester"
)

type mqttConnectRequest struct {
	BrokerURL string `json:"broker_url"`
	ClientID  string `json:"client_id"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

type mqttPublishRequest struct {
	Topic   string `json:"topic"`
	Payload string `json:"payload"`
	QoS     byte   `json:"qos"`
	Retain  bool   `json:"retain"`
}

type mqttSubscribeRequest struct {
	Topic string `json:"topic"`
	QoS   byte   `json:"qos"`
}

type subscriptionView struct {
	mqtttester.Subscription
	QoSDescription string `json:"qos_description"`
}

// mqttConfigPatch carries optional engine settings. Durations are in
// milliseconds except keep-alive.
type mqttConfigPatch struct {
	Port                  *int    `json:"port"`
	Protocol              *string `json:"protocol"`
	KeepAliveSeconds      *int    `json:"keep_alive_s"`
	CleanSession          *bool   `json:"clean_session"`
	ReconnectPeriodMS     *int    `json:"reconnect_period_ms"`
	ConnectTimeoutMS      *int    `json:"connect_timeout_ms"`
	MaxReconnectTimes     *int    `json:"max_reconnect_times"`
	MaxMessages           *int    `json:"max_messages"`
	MaxPayloadSize        *int    `json:"max_payload_size"`
	TLSInsecureSkipVerify *bool   `json:"tls_insecure_skip_verify"`
}

type mqttConfigView struct {
	BrokerURL             string `json:"broker_url"`
	FullURL               string `json:"full_url"`
	Port                  int    `json:"port"`
	Protocol              string `json:"protocol"`
	ClientID              string `json:"client_id"`
	Username              string `json:"username,omitempty"`
	KeepAliveSeconds      int64  `json:"keep_alive_s"`
	CleanSession          bool   `json:"clean_session"`
	ReconnectPeriodMS     int64  `json:"reconnect_period_ms"`
	ConnectTimeoutMS      int64  `json:"connect_timeout_ms"`
	MaxReconnectTimes     int    `json:"max_reconnect_times"`
	MaxMessages           int    `json:"max_messages"`
	MaxPayloadSize        int    `json:"max_payload_size"`
	TLSInsecureSkipVerify bool   `json:"tls_insecure_skip_verify"`
}

func newMQTTConfigView(c mqtttester.Config) mqttConfigView {
	return mqttConfigView{
		BrokerURL:             c.BrokerURL,
		FullURL:               mqtttester.BuildBrokerURL(c),
		Port:                  c.Port,
		Protocol:              c.Protocol,
		ClientID:              c.ClientID,
		Username:              c.Username,
		KeepAliveSeconds:      int64(c.KeepAlive.Seconds()),
		CleanSession:          c.CleanSession,
		ReconnectPeriodMS:     c.ReconnectPeriod.Milliseconds(),
		ConnectTimeoutMS:      c.ConnectTimeout.Milliseconds(),
		MaxReconnectTimes:     c.MaxReconnectTimes,
		MaxMessages:           c.MaxMessages,
		MaxPayloadSize:        c.MaxPayloadSize,
		TLSInsecureSkipVerify: c.TLSInsecureSkipVerify,
	}
}

func (s *Server) handleMQTTConnect(w http.ResponseWriter, r *http.Request) {
	var req mqttConnectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var opts []mqtttester.ConnectOption
	if req.ClientID != "" {
		opts = append(opts, mqtttester.WithClientID(req.ClientID))
	}
	if req.Username != "" || req.Password != "" {
		opts = append(opts, mqtttester.WithCredentials(req.Username, req.Password))
	}

	if err := s.mqtt.Connect(r.Context(), req.BrokerURL, opts...); err != nil {
		writeTesterError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.mqtt.ConnectionInfo())
}

func (s *Server) handleMQTTDisconnect(w http.ResponseWriter, _ *http.Request) {
	s.mqtt.Disconnect()
	writeJSON(w, http.StatusOK, s.mqtt.ConnectionInfo())
}

func (s *Server) handleMQTTPublish(w http.ResponseWriter, r *http.Request) {
	var req mqttPublishRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err := s.mqtt.Publish(req.Topic, req.Payload, mqtttester.PublishOptions{QoS: req.QoS, Retain: req.Retain})
	if err != nil {
		writeTesterError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "published", "topic": req.Topic})
}

func (s *Server) handleMQTTSubscribe(w http.ResponseWriter, r *http.Request) {
	var req mqttSubscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.mqtt.Subscribe(req.Topic, req.QoS); err != nil {
		writeTesterError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "subscribing", "topic": req.Topic})
}

func (s *Server) handleMQTTUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var req mqttSubscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.mqtt.Unsubscribe(req.Topic); err != nil {
		writeTesterError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "unsubscribing", "topic": req.Topic})
}

func (s *Server) handleMQTTSubscriptions(w http.ResponseWriter, _ *http.Request) {
	subs := s.mqtt.Subscriptions()
	views := make([]subscriptionView, 0, len(subs))
	for _, sub := range subs {
		views = append(views, subscriptionView{Subscription: sub, QoSDescription: format.QoSDescription(sub.QoS)})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subscriptions": views,
		"count":         len(views),
	})
}

func (s *Server) handleMQTTClearSubscriptions(w http.ResponseWriter, _ *http.Request) {
	s.mqtt.ClearAllSubscriptions()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMQTTInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.mqtt.ConnectionInfo())
}

func (s *Server) handleMQTTStats(w http.ResponseWriter, _ *http.Request) {
	st := s.mqtt.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"stats": st,
		"display": map[string]string{
			"bytes_published":     format.Bytes(st.BytesPublished),
			"bytes_received":      format.Bytes(st.BytesReceived),
			"connection_duration": format.Duration(st.ConnectionDuration),
		},
	})
}

func (s *Server) handleMQTTMessages(w http.ResponseWriter, _ *http.Request) {
	msgs := s.mqtt.Messages()
	writeJSON(w, http.StatusOK, map[string]any{
		"messages": msgs,
		"count":    len(msgs),
	})
}

func (s *Server) handleMQTTClearMessages(w http.ResponseWriter, _ *http.Request) {
	s.mqtt.ClearMessages()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMQTTConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newMQTTConfigView(s.mqtt.Config()))
}

func (s *Server) handleMQTTUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var p mqttConfigPatch
	if !decodeJSON(w, r, &p) {
		return
	}
	for name, v := range map[string]*int{
		"port":                p.Port,
		"keep_alive_s":        p.KeepAliveSeconds,
		"reconnect_period_ms": p.ReconnectPeriodMS,
		"connect_timeout_ms":  p.ConnectTimeoutMS,
		"max_reconnect_times": p.MaxReconnectTimes,
		"max_messages":        p.MaxMessages,
		"max_payload_size":    p.MaxPayloadSize,
	} {
		if v != nil && *v < 0 {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, name+" must not be negative")
			return
		}
	}
	if p.Protocol != nil {
		switch *p.Protocol {
		case "mqtt", "mqtts", "ws", "wss":
		default:
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "protocol must be mqtt, mqtts, ws or wss")
			return
		}
	}

	s.mqtt.UpdateConfig(func(c *mqtttester.Config) {
		setInt(&c.Port, p.Port)
		if p.Protocol != nil {
			c.Protocol = *p.Protocol
		}
		if p.KeepAliveSeconds != nil {
			c.KeepAlive = time.Duration(*p.KeepAliveSeconds) * time.Second
		}
		if p.CleanSession != nil {
			c.CleanSession = *p.CleanSession
		}
		setMillis(&c.ReconnectPeriod, p.ReconnectPeriodMS)
		setMillis(&c.ConnectTimeout, p.ConnectTimeoutMS)
		setInt(&c.MaxReconnectTimes, p.MaxReconnectTimes)
		setInt(&c.MaxMessages, p.MaxMessages)
		setInt(&c.MaxPayloadSize, p.MaxPayloadSize)
		if p.TLSInsecureSkipVerify != nil {
			c.TLSInsecureSkipVerify = *p.TLSInsecureSkipVerify
		}
	})
	writeJSON(w, http.StatusOK, newMQTTConfigView(s.mqtt.Config()))
}
