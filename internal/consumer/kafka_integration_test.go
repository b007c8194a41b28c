//go:build integration

package consumer

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkacontainer "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/itayakad/juno-master/internal/events"
	"github.com/itayakad/juno-master/internal/persistence/memory"
)

func framedJSON(t *testing.T, schemaID int, v any) []byte {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	frame := make([]byte, 5, 5+len(body))
	binary.BigEndian.PutUint32(frame[1:5], uint32(schemaID))
	return append(frame, body...)
}

func TestKafkaLogEventsUpdateProfile(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	kafkaC, err := kafkacontainer.Run(ctx, "confluentinc/confluent-local:7.5.0",
		testcontainers.WithEnv(map[string]string{"KAFKA_AUTO_CREATE_TOPICS_ENABLE": "true"}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kafkaC.Terminate(context.Background()) })

	brokers, err := kafkaC.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	broker := brokers[0]

	const topic = "log_events"

	conn, err := kafka.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{broker},
		GroupID:     "juno-projection-integration",
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	defer reader.Close()

	store := memory.NewRepository()
	proc := NewProcessor(reader, NewProjectionHandler(store))

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		_ = proc.Run(runCtx)
	}()

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(broker),
		Topic:                  topic,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	defer writer.Close()

	headers := func(eventType string) []kafka.Header {
		return []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "user_id", Value: []byte("u1")},
		}
	}
	require.NoError(t, writer.WriteMessages(ctx,
		kafka.Message{Key: []byte("u1"), Value: []byte("not framed"), Headers: headers(events.TypeLogCreated)},
		kafka.Message{Key: []byte("u1"), Value: framedJSON(t, 1, events.LogCreated{
			LogID: "e1", UserID: "u1", Kind: "exercise", DurationMin: 45, Weekday: "Tue", Version: "v1",
		}), Headers: headers(events.TypeLogCreated)},
		kafka.Message{Key: []byte("u1"), Value: framedJSON(t, 1, events.LogCreated{
			LogID: "m1", UserID: "u1", Kind: "meal", Calories: 700, Protein: 30, Version: "v1",
		}), Headers: headers(events.TypeLogCreated)},
		kafka.Message{Key: []byte("u1"), Value: framedJSON(t, 2, events.LogDeleted{
			LogID: "m1", UserID: "u1", Kind: "meal", Calories: 700, Protein: 30, SameDay: true,
		}), Headers: headers(events.TypeLogDeleted)},
	))

	require.Eventually(t, func() bool {
		profile, err := store.GetProfile(ctx, "u1")
		if err != nil || profile == nil {
			return false
		}
		return profile.ExerciseMinutes == 45 && profile.ProteinConsumed == 30 && profile.CaloriesConsumed == 0
	}, 60*time.Second, 500*time.Millisecond)

	profile, err := store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, []string{"Tue"}, profile.WorkoutDays)
	require.Equal(t, 30.0, profile.ProteinConsumed)
}
