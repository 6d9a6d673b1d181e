package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-ledger/generic"
)

// MockKafkaWriter mocks KafkaWriter interface
type MockKafkaWriter struct {
	mock.Mock
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockKafkaWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func testAdjustment() generic.Adjustment {
	key := generic.EntitlementKey{EmployeeID: "emp-1", LeaveTypeID: "annual"}
	adj := generic.NewAdjustment(key, generic.KindAccrual, decimal.RequireFromString("1.75"), "monthly accrual", "system")
	adj.ID = "adj-1"
	adj.CreatedAt = time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)
	return adj
}

func TestAdjustmentPublisher_PublishAdjustments(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := context.Background()

	t.Run("one message per adjustment keyed by employee", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		publisher := NewAdjustmentPublisherWithWriter(logger, mockWriter, "leave.adjustments")

		mockWriter.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 || string(msgs[0].Key) != "emp-1" {
				return false
			}
			var event AdjustmentEvent
			if err := json.Unmarshal(msgs[0].Value, &event); err != nil {
				return false
			}
			return event.Kind == "accrual" && event.Type == "add" && event.Amount.Equal(decimal.RequireFromString("1.75"))
		})).Return(nil).Once()

		require.NoError(t, publisher.PublishAdjustments(ctx, []generic.Adjustment{testAdjustment()}))
		mockWriter.AssertExpectations(t)
	})

	t.Run("writer error is wrapped", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		publisher := NewAdjustmentPublisherWithWriter(logger, mockWriter, "leave.adjustments")
		writerErr := errors.New("broker unavailable")
		mockWriter.On("WriteMessages", ctx, mock.AnythingOfType("[]kafka.Message")).Return(writerErr).Once()

		err := publisher.PublishAdjustments(ctx, []generic.Adjustment{testAdjustment()})
		assert.ErrorIs(t, err, writerErr)
		assert.Contains(t, err.Error(), "leave.adjustments")
		mockWriter.AssertExpectations(t)
	})

	t.Run("empty batch writes nothing", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		publisher := NewAdjustmentPublisherWithWriter(logger, mockWriter, "leave.adjustments")

		require.NoError(t, publisher.PublishAdjustments(ctx, nil))
		mockWriter.AssertNotCalled(t, "WriteMessages", mock.Anything, mock.Anything)
	})
}

func TestNewAdjustmentPublisher_Validation(t *testing.T) {
	logger := slog.Default()

	_, err := NewAdjustmentPublisher(logger, KafkaConfig{Topic: "leave.adjustments"})
	assert.Error(t, err)

	_, err = NewAdjustmentPublisher(logger, KafkaConfig{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)
}

func TestAdjustmentPublisher_Close(t *testing.T) {
	mockWriter := new(MockKafkaWriter)
	publisher := NewAdjustmentPublisherWithWriter(slog.Default(), mockWriter, "leave.adjustments")
	mockWriter.On("Close").Return(nil).Once()

	assert.NoError(t, publisher.Close())
	mockWriter.AssertExpectations(t)
}
