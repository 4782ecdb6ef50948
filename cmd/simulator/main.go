// Command simulator feeds the dispatcher with synthetic traffic: it seeds
// the membership sets, brings a fleet of workers online around a center
// point, then emits ride requests on a fixed cadence. Useful for local runs
// and load checks against a real broker.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

func main() {
	var (
		brokers   = flag.String("brokers", envOr("KAFKA_BROKERS", "localhost:9092"), "comma-separated kafka brokers")
		topic     = flag.String("topic", envOr("KAFKA_INBOUND_TOPIC", "dispatch-inbound"), "inbound events topic")
		redisAddr = flag.String("redis", envOr("REDIS_ADDR", "localhost:6379"), "redis address for membership seeding")
		vehicles  = flag.Int("vehicles", 20, "number of vehicle workers to bring online")
		requests  = flag.Int("requests", 50, "number of ride requests to emit")
		interval  = flag.Duration("interval", 2*time.Second, "delay between requests")
		lat       = flag.Float64("lat", 52.2297, "center latitude")
		lon       = flag.Float64("lon", 21.0122, "center longitude")
		spreadKm  = flag.Float64("spread-km", 5, "max offset from center in km")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workerIDs := make([]string, *vehicles)
	for i := range workerIDs {
		workerIDs[i] = fmt.Sprintf("sim-vehicle-%03d", i)
	}

	rc := redis.NewClient(&redis.Options{Addr: *redisAddr})
	defer rc.Close()
	members := make([]interface{}, len(workerIDs))
	for i, id := range workerIDs {
		members[i] = id
	}
	if err := rc.SAdd(ctx, "members:vehicle", members...).Err(); err != nil {
		log.Fatalf("seed membership: %v", err)
	}
	log.Printf("seeded %d vehicle members", len(workerIDs))

	w := kafka.NewWriter(kafka.WriterConfig{Brokers: splitList(*brokers), Topic: *topic, Balancer: &kafka.LeastBytes{}})
	defer w.Close()

	for _, id := range workerIDs {
		wlat, wlon := jitter(*lat, *lon, *spreadKm)
		if err := emit(ctx, w, id, map[string]any{
			"type":     "DRIVER_AVAILABILITY",
			"status":   "AVAILABLE",
			"location": map[string]float64{"latitude": wlat, "longitude": wlon},
		}); err != nil {
			log.Fatalf("availability for %s: %v", id, err)
		}
	}
	log.Printf("%d workers online around (%.4f, %.4f)", len(workerIDs), *lat, *lon)

	for i := 0; i < *requests; i++ {
		select {
		case <-ctx.Done():
			log.Println("interrupted")
			return
		case <-time.After(*interval):
		}
		rider := fmt.Sprintf("sim-rider-%03d", i)
		plat, plon := jitter(*lat, *lon, *spreadKm)
		err := emit(ctx, w, rider, map[string]any{
			"type":    "RIDE_REQUEST",
			"orderId": fmt.Sprintf("sim-order-%03d", i),
			"pickup":  map[string]float64{"latitude": plat, "longitude": plon},
			"note":    "simulated traffic",
		})
		if err != nil {
			log.Printf("request %d failed: %v", i, err)
			continue
		}
		log.Printf("request %d emitted from %s", i, rider)
	}
}

func emit(ctx context.Context, w *kafka.Writer, sender string, body map[string]any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return w.WriteMessages(ctx, kafka.Message{Key: []byte(sender), Value: b})
}

// jitter offsets a coordinate by up to spreadKm in each axis. One degree of
// latitude is ~111km; longitude is close enough at mid latitudes for
// simulation purposes.
func jitter(lat, lon, spreadKm float64) (float64, float64) {
	d := spreadKm / 111.0
	return lat + (rand.Float64()*2-1)*d, lon + (rand.Float64()*2-1)*d
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
