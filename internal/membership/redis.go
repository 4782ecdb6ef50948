package membership

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/example/fleet-dispatch/internal/models"
)

// RedisDirectory reads authorized worker ids from one Redis set per class.
type RedisDirectory struct {
	client *redis.Client
	keys   map[models.WorkerClass]string
}

func NewRedisDirectory(addr, password, vehicleKey, courierKey string) *RedisDirectory {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisDirectory{
		client: c,
		keys: map[models.WorkerClass]string{
			models.ClassVehicle: vehicleKey,
			models.ClassCourier: courierKey,
		},
	}
}

func (d *RedisDirectory) AuthorizedWorkers(ctx context.Context, class models.WorkerClass) ([]string, error) {
	key, ok := d.keys[class]
	if !ok {
		return nil, fmt.Errorf("no member set for class %q", class)
	}
	ids, err := d.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", key, err)
	}
	return ids, nil
}

func (d *RedisDirectory) Close() error { return d.client.Close() }
