package app

import (
	"bufio"
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
	"github.com/relabs-tech/gnss_receiver/internal/ubx"
)

// RunConsoleMQTT subscribes to the receiver topics and pretty-prints them.
// Typing "poll <MESSAGE>" on stdin forwards a poll request to the producer.
func RunConsoleMQTT() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	subscribe := func(topic string, handler mqtt.MessageHandler) error {
		if topic == "" {
			return nil
		}
		token := client.Subscribe(topic, 0, handler)
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("console: subscribed to %s", topic)
		return nil
	}

	// Subscribe to NMEA fixes
	err := subscribe(cfg.TopicFix, func(_ mqtt.Client, msg mqtt.Message) {
		var f gps.Fix
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("console: fix unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[FIX ]  time=%s date=%s lat=%.6f lon=%.6f alt=%.1fm speed=%.1fkn course=%.1f° sats=%d validity=%s\n",
			f.Time, f.Date, f.Latitude, f.Longitude, f.AltitudeM,
			f.SpeedKnots, f.CourseDeg, f.Satellites, f.Validity,
		)
	})
	if err != nil {
		return err
	}

	// Subscribe to ECEF solutions
	err = subscribe(cfg.TopicNavSol, func(_ mqtt.Client, msg mqtt.Message) {
		var sol ubx.NavSol
		if err := json.Unmarshal(msg.Payload(), &sol); err != nil {
			log.Printf("console: nav_sol unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[SOL ]  X=%.3f Y=%.3f Z=%.3f p_acc=%.3fm fix=%d sv=%d fix_ok=%v\n",
			sol.EcefX, sol.EcefY, sol.EcefZ, sol.PAcc, sol.GpsFix, sol.NumSV, sol.FixOK,
		)
	})
	if err != nil {
		return err
	}

	// Subscribe to RTK relative position
	err = subscribe(cfg.TopicRelPosNed, func(_ mqtt.Client, msg mqtt.Message) {
		var pos ubx.RelPosNed
		if err := json.Unmarshal(msg.Payload(), &pos); err != nil {
			log.Printf("console: relposned unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[NED ]  N=%.4f E=%.4f D=%.4f acc=(%.4f %.4f %.4f) carr=%d fix_ok=%v\n",
			pos.PosN, pos.PosE, pos.PosD, pos.AccN, pos.AccE, pos.AccD,
			pos.CarrSoln, pos.FixOK,
		)
	})
	if err != nil {
		return err
	}

	// Subscribe to survey-in progress
	err = subscribe(cfg.TopicSvin, func(_ mqtt.Client, msg mqtt.Message) {
		var svin ubx.Svin
		if err := json.Unmarshal(msg.Payload(), &svin); err != nil {
			log.Printf("console: svin unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[SVIN]  dur=%ds obs=%d mean=(%.3f %.3f %.3f) acc=%.4fm valid=%v active=%v\n",
			svin.Dur, svin.Obs, svin.MeanX, svin.MeanY, svin.MeanZ,
			svin.MeanAcc, svin.Valid, svin.Active,
		)
	})
	if err != nil {
		return err
	}

	// Subscribe to satellite reports
	err = subscribe(cfg.TopicSatellites, func(_ mqtt.Client, msg mqtt.Message) {
		var report SatReport
		if err := json.Unmarshal(msg.Payload(), &report); err != nil {
			log.Printf("console: satellites unmarshal error: %v", err)
			return
		}

		used := 0
		for _, s := range report.Sats {
			if s.Used {
				used++
			}
		}
		fmt.Printf("[SAT ]  visible=%d used=%d\n", len(report.Sats), used)
	})
	if err != nil {
		return err
	}

	// Subscribe to diagnostics (plain text, printed verbatim)
	err = subscribe(cfg.TopicDiag, func(_ mqtt.Client, msg mqtt.Message) {
		fmt.Println(string(msg.Payload()))
	})
	if err != nil {
		return err
	}

	// stdin: "poll <MESSAGE>" forwards a poll request to the producer.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			fields := strings.Fields(line)
			switch {
			case fields[0] == "poll" && len(fields) == 2:
				if cfg.TopicPoll == "" {
					fmt.Println("no poll topic configured")
					continue
				}
				client.Publish(cfg.TopicPoll, 0, false, fields[1])
			case fields[0] == "help":
				fmt.Println("commands:")
				fmt.Println("  poll <MESSAGE>  request one message from the receiver")
				fmt.Printf("  messages: %s\n", strings.Join(receiver.PollMessages(), " "))
			default:
				fmt.Printf("unknown command %q (try help)\n", line)
			}
		}
	}()

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
