package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/gnss_receiver/internal/config"
	"github.com/relabs-tech/gnss_receiver/internal/gps"
)

// RunWeb serves the latest GNSS fix over a JSON API and a live receiver
// debug console over a websocket. All data comes in over MQTT; the web
// process never touches the serial port.
func RunWeb() error {
	cfg := config.Get()

	var (
		mu      sync.RWMutex
		lastFix gps.Fix
		haveFix bool
	)

	// 1) Connect to MQTT broker
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("connected to MQTT broker at %s", cfg.MQTTBroker)

	// 2) Subscribe to fix topic and update lastFix on each message
	token := client.Subscribe(cfg.TopicFix, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var f gps.Fix
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("MQTT payload unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastFix = f
		haveFix = true
		mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("subscribed to MQTT topic %s", cfg.TopicFix)

	// 3) Relay receiver diagnostics to connected debug sessions
	if cfg.TopicDiag != "" {
		token = client.Subscribe(cfg.TopicDiag, 0, func(_ mqtt.Client, msg mqtt.Message) {
			debugHub.broadcastDiag(string(msg.Payload()))
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("subscribed to MQTT topic %s", cfg.TopicDiag)
	}

	// 4) JSON API endpoint: latest fix
	http.HandleFunc("/api/fix", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()

		if !haveFix {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(lastFix); err != nil {
			log.Printf("json encode error: %v", err)
		}
	})

	// 5) Live receiver debug websocket
	http.HandleFunc("/ws/receiver", NewReceiverDebugHandler(client, cfg))

	// 6) Static files from ./web as the root
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}
