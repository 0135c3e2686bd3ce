package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/gnss_receiver/internal/config"
	"github.com/relabs-tech/gnss_receiver/internal/gps"
	"github.com/relabs-tech/gnss_receiver/internal/receiver"
	"github.com/relabs-tech/gnss_receiver/internal/transport"
	"github.com/relabs-tech/gnss_receiver/internal/ubx"
)

// RunGNSSProducer opens the receiver's serial port, negotiates its
// configuration and publishes everything the module emits to MQTT: NMEA
// fixes on the fix topic, binary navigation messages as JSON on their own
// topics, and diagnostic text on the diag topic. Poll requests arriving on
// the poll topic are forwarded to the receiver.
func RunGNSSProducer() error {
	cfg := config.Get()

	// ---- 1) Connect to MQTT broker ----
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDGNSS)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("gnss producer connected to MQTT broker at %s", cfg.MQTTBroker)

	// publish serializes a record and sends it fire-and-forget; a slow or
	// absent broker must never stall the receive loop.
	publish := func(topic string, v any) {
		if topic == "" {
			return
		}
		payload, err := json.Marshal(v)
		if err != nil {
			log.Printf("gnss: marshal for %s: %v", topic, err)
			return
		}
		client.Publish(topic, 0, true, payload)
	}

	// ---- 2) Open GNSS serial port ----
	port, err := transport.OpenSerial(cfg.GNSSSerialPort, uint(cfg.GNSSBaudRate))
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.GNSSSerialPort, err)
	}
	defer port.Close()
	log.Printf("gnss serial port opened on %s at %d baud", cfg.GNSSSerialPort, cfg.GNSSBaudRate)

	// ---- 3) Wire the receiver driver ----
	var fix gps.Fix

	rx := receiver.New(port, receiver.Options{
		Callbacks: receiverCallbacks(publish, cfg),
		LineHandler: func(line string) {
			publishFix, err := gps.ApplyLine(&fix, line)
			if err != nil {
				// Noisy or partial sentences are normal during baud hunting.
				return
			}
			if publishFix {
				publish(cfg.TopicFix, fix)
			}
		},
		Diag: func(format string, args ...any) {
			text := fmt.Sprintf(format, args...)
			log.Print(text)
			if cfg.TopicDiag != "" {
				client.Publish(cfg.TopicDiag, 0, false, text)
			}
		},
	})

	rx.Start()
	defer rx.Stop()

	// ---- 4) Negotiate baud rate and configuration ----
	if err := rx.Bringup(uint(cfg.GNSSBaudRate), uint16(cfg.GNSSMeasRateMs), cfg.GNSSDynamicModel); err != nil {
		return fmt.Errorf("receiver bring-up: %w", err)
	}
	log.Printf("receiver configured, generation %v", rx.Generation())

	// ---- 5) Forward poll requests from MQTT ----
	if cfg.TopicPoll != "" {
		token := client.Subscribe(cfg.TopicPoll, 0, func(_ mqtt.Client, msg mqtt.Message) {
			name := strings.TrimSpace(string(msg.Payload()))
			if err := rx.PollCommand(name); err != nil {
				log.Printf("gnss: poll %q: %v", name, err)
			}
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("gnss: subscribed to %s", cfg.TopicPoll)
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("gnss producer shutting down")
	return nil
}

// receiverCallbacks maps each decoded binary message onto its MQTT topic.
func receiverCallbacks(publish func(string, any), cfg *config.Config) receiver.Callbacks {
	return receiver.Callbacks{
		NavSol: func(sol ubx.NavSol) {
			publish(cfg.TopicNavSol, sol)
		},
		RelPosNed: func(pos ubx.RelPosNed) {
			publish(cfg.TopicRelPosNed, pos)
		},
		Svin: func(svin ubx.Svin) {
			publish(cfg.TopicSvin, svin)
		},
		NavSat: func(sat ubx.NavSat) {
			publish(cfg.TopicSatellites, NewSatReport(sat))
		},
	}
}

// SatReport is the per-satellite view published on the satellites topic.
// Only the entries actually present are carried, not the full fixed-size
// decode buffer.
type SatReport struct {
	ITow uint32           `json:"i_tow"`
	Sats []ubx.NavSatInfo `json:"sats"`
}

// NewSatReport trims a decoded NAV-SAT message down to its live entries.
func NewSatReport(sat ubx.NavSat) SatReport {
	return SatReport{
		ITow: sat.ITow,
		Sats: append([]ubx.NavSatInfo(nil), sat.Sats[:sat.NumSV]...),
	}
}
