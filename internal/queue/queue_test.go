package queue

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/osintbuddy/backend/pkg/apperror"
	"github.com/osintbuddy/backend/pkg/leaselock"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	key      string
	msg      amqp091.Publishing
}

type fakePublisher struct {
	out []published
	err error
}

func (p *fakePublisher) Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	if p.err != nil {
		return p.err
	}
	p.out = append(p.out, published{exchange: exchange, key: key, msg: msg})
	return nil
}

type fakeAck struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *fakeAck) Ack(tag uint64, multiple bool) error {
	a.acked++
	return nil
}

func (a *fakeAck) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

func (a *fakeAck) Reject(tag uint64, requeue bool) error {
	return nil
}

func TestRetryCount(t *testing.T) {
	tests := []struct {
		headers amqp091.Table
		want    int
	}{
		{nil, 0},
		{amqp091.Table{"x-retries": int32(3)}, 3},
		{amqp091.Table{"x-retries": int64(4)}, 4},
		{amqp091.Table{"x-retries": 5}, 5},
		{amqp091.Table{"x-retries": "7"}, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, retryCount(tt.headers))
	}
}

func TestHandleProcessingErrorRetries(t *testing.T) {
	pub := &fakePublisher{}
	ack := &fakeAck{}
	msg := amqp091.Delivery{Acknowledger: ack, Body: []byte(`{"graph_id":1}`), Headers: amqp091.Table{"x-retries": int32(2)}}

	HandleProcessingError(pub, msg, GraphDeleteQueue)

	require.Len(t, pub.out, 1)
	assert.Equal(t, GraphDeleteQueue+"_retry", pub.out[0].key)
	assert.Equal(t, int32(3), pub.out[0].msg.Headers["x-retries"])
	assert.Equal(t, int32(2), msg.Headers["x-retries"])
	assert.Equal(t, 1, ack.acked)
}

func TestHandleProcessingErrorDeadLetters(t *testing.T) {
	pub := &fakePublisher{}
	ack := &fakeAck{}
	msg := amqp091.Delivery{Acknowledger: ack, Body: []byte(`{}`), Headers: amqp091.Table{"x-retries": int64(MaxRetries)}}

	HandleProcessingError(pub, msg, GraphDeleteQueue)

	require.Len(t, pub.out, 1)
	assert.Equal(t, GraphDeleteQueue+"_dlq", pub.out[0].key)
	assert.Equal(t, 1, ack.acked)
}

func TestHandleProcessingErrorRequeuesWhenPublishFails(t *testing.T) {
	pub := &fakePublisher{err: errors.New("closed")}
	ack := &fakeAck{}

	HandleProcessingError(pub, amqp091.Delivery{Acknowledger: ack}, GraphDeleteQueue)

	assert.Equal(t, 0, ack.acked)
	assert.Equal(t, 1, ack.nacked)
	assert.True(t, ack.requeue)
}

func TestEnqueueGraphDelete(t *testing.T) {
	pub := &fakePublisher{}
	require.NoError(t, EnqueueGraphDelete(pub, 12))

	require.Len(t, pub.out, 1)
	assert.Equal(t, "", pub.out[0].exchange)
	assert.Equal(t, GraphDeleteQueue, pub.out[0].key)
	var msg GraphDeleteMsg
	require.NoError(t, json.Unmarshal(pub.out[0].msg.Body, &msg))
	assert.Equal(t, int64(12), msg.GraphID)
}

type fakeDropper struct {
	dropped []string
	err     error
}

func (d *fakeDropper) DropGraph(ctx context.Context, graph string) error {
	d.dropped = append(d.dropped, graph)
	return d.err
}

var graphUUID = uuid.MustParse("01234567-89ab-cdef-0123-456789abcdef")

func graphRow(state string) *pgxmock.Rows {
	now := pgtype.Timestamptz{Time: time.Unix(1700000000, 0), Valid: true}
	return pgxmock.NewRows([]string{"id", "uuid", "label", "description", "owner_id", "is_favorite", "state", "created_at", "updated_at"}).
		AddRow(int64(5), pgtype.UUID{Bytes: graphUUID, Valid: true}, "case", "", int64(1), false, state, now, now)
}

func newDeleter(t *testing.T, dropper GraphDropper) (*GraphDeleter, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO app_locks")).
		WithArgs("graph:5", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"lock_key"}).AddRow("graph:5"))

	return &GraphDeleter{DB: mock, Locks: leaselock.New(mock, 0), Store: dropper}, mock
}

func expectRelease(mock pgxmock.PgxPoolIface) {
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM app_locks")).
		WithArgs("graph:5", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
}

func TestProcessGraphDeleteMessage(t *testing.T) {
	dropper := &fakeDropper{}
	d, mock := newDeleter(t, dropper)

	mock.ExpectQuery(regexp.QuoteMeta("-- name: GetGraphForDelete")).
		WithArgs(int64(5)).
		WillReturnRows(graphRow("deleting"))
	mock.ExpectExec(regexp.QuoteMeta("-- name: DeleteGraph")).
		WithArgs(int64(5)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	expectRelease(mock)

	require.NoError(t, d.ProcessGraphDeleteMessage(context.Background(), []byte(`{"graph_id":5}`)))
	assert.Equal(t, []string{"g_0123456789abcdef0123456789abcdef"}, dropper.dropped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessGraphDeleteMessageMissingAGEGraph(t *testing.T) {
	dropper := &fakeDropper{err: apperror.NewNotFound("graph", "g")}
	d, mock := newDeleter(t, dropper)

	mock.ExpectQuery(regexp.QuoteMeta("-- name: GetGraphForDelete")).
		WithArgs(int64(5)).
		WillReturnRows(graphRow("deleting"))
	mock.ExpectExec(regexp.QuoteMeta("-- name: DeleteGraph")).
		WithArgs(int64(5)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	expectRelease(mock)

	require.NoError(t, d.ProcessGraphDeleteMessage(context.Background(), []byte(`{"graph_id":5}`)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessGraphDeleteMessageSkipsReadyGraph(t *testing.T) {
	dropper := &fakeDropper{}
	d, mock := newDeleter(t, dropper)

	mock.ExpectQuery(regexp.QuoteMeta("-- name: GetGraphForDelete")).
		WithArgs(int64(5)).
		WillReturnRows(graphRow("ready"))
	expectRelease(mock)

	require.NoError(t, d.ProcessGraphDeleteMessage(context.Background(), []byte(`{"graph_id":5}`)))
	assert.Empty(t, dropper.dropped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessGraphDeleteMessageDropFailure(t *testing.T) {
	dropper := &fakeDropper{err: apperror.NewQuery(errors.New("locked"))}
	d, mock := newDeleter(t, dropper)

	mock.ExpectQuery(regexp.QuoteMeta("-- name: GetGraphForDelete")).
		WithArgs(int64(5)).
		WillReturnRows(graphRow("deleting"))
	expectRelease(mock)

	err := d.ProcessGraphDeleteMessage(context.Background(), []byte(`{"graph_id":5}`))
	assert.ErrorIs(t, err, apperror.ErrQuery)
	assert.NoError(t, mock.ExpectationsWereMet())
}
