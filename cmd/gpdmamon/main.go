package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "gpdmamon - Run chained GPDMA transfers on a simulated controller, export metrics and publish channel events over MQTT.\n\tUsage:\n")
		flag.PrintDefaults()
	}
	broker := flag.String("broker", "", "MQTT broker address host:port. Empty disables publishing.")
	topic := flag.String("topic", "gpdma/events", "MQTT topic for channel events.")
	clientID := flag.String("client-id", "gpdmamon", "MQTT client identifier.")
	metricsAddr := flag.String("metrics", ":9917", "Prometheus metrics listen address. Empty disables the endpoint.")
	iters := flag.Int("n", 0, "Number of transfers to run. 0 runs forever.")
	size := flag.Uint("size", 10000, "Transfer size in bytes.")
	interval := flag.Duration("interval", 500*time.Millisecond, "Pause between transfers.")
	faultEvery := flag.Int("fault-every", 0, "Inject an HRESP error every n transfers. 0 disables.")
	verbose := flag.Bool("v", false, "Log manager internals.")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug - 1
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if *metricsAddr != "" {
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			err := http.ListenAndServe(*metricsAddr, nil)
			logger.Error("metrics:serve", slog.String("err", err.Error()))
		}()
	}
	var pub *publisher
	if *broker != "" {
		var err error
		pub, err = dialPublisher(*broker, *topic, *clientID)
		if err != nil {
			log.Fatal("mqtt connect: ", err)
		}
		defer pub.Close()
		logger.Info("mqtt:connected", slog.String("broker", *broker))
	}
	mon, err := newMonitor(uint32(*size), logger)
	if err != nil {
		log.Fatal("monitor: ", err)
	}
	for i := 1; *iters == 0 || i <= *iters; i++ {
		fault := *faultEvery > 0 && i%*faultEvery == 0
		err = mon.step(fault)
		if err != nil {
			logger.Error("transfer", slog.Int("iter", i), slog.String("err", err.Error()))
		}
		st := mon.m.Stats()
		for _, e := range mon.drain() {
			eventsTotal.WithLabelValues(e.Event.String()).Inc()
			if pub == nil {
				continue
			}
			err = pub.publish(eventMessage{
				Channel:   e.Channel,
				Event:     e.Event.String(),
				Transfers: st.Transfers,
				Allocated: st.Allocated,
			})
			if err != nil {
				logger.Error("mqtt:publish-failed", slog.String("err", err.Error()))
			}
		}
		time.Sleep(*interval)
	}
}
