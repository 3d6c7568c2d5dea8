package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/berfenger/solarmax2mqtt/internal/core/domain"
	"github.com/berfenger/solarmax2mqtt/internal/metrics"
	"github.com/berfenger/solarmax2mqtt/internal/util/actorutil"
	"github.com/berfenger/solarmax2mqtt/pkg/solarmax"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, healthy bool, queryErr error) (*Server, func()) {
	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)

	frame := solarmax.EncodeResponse(1, []solarmax.Field{
		{Key: solarmax.KeyACOutput, Value: "0A"},
		{Key: solarmax.KeyStatus, Value: "4E28,0"},
	})
	values, err := solarmax.DecodeResponse(frame)
	if err != nil {
		t.Fatal(err)
	}

	pid := as.Root.Spawn(actor.PropsFromFunc(func(ctx actor.Context) {
		switch msg := ctx.Message().(type) {
		case domain.ActorHealthRequest:
			ctx.Respond(domain.ActorHealthResponse{Id: domain.ACTOR_ID_MASTER, Healthy: healthy})
		case domain.QueryRequest:
			resp := domain.QueryResponse{ActorResponseMixIn: domain.ErrorResponse(queryErr)}
			if queryErr == nil {
				resp.Values = make(map[solarmax.QueryKey]solarmax.Value)
				for _, k := range msg.Keys {
					if v, ok := values[k]; ok {
						resp.Values[k] = v
					}
				}
			}
			ctx.Respond(resp)
		case domain.GetDeviceInfoRequest:
			ctx.Respond(domain.GetDeviceInfoResponse{Info: &domain.DeviceInfo{Address: 1, Model: "SolarMax 3000S"}})
		case domain.ReconnectRequest:
			ctx.Respond(domain.ReconnectResponse{})
		}
	}))

	s := &Server{
		rootContext: as.Root,
		masterActor: pid,
		registry:    metrics.NewRegistry(),
	}
	return s, as.Shutdown
}

func serve(s *Server, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.RegisterRoutes().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealthCheckHandler(t *testing.T) {
	assert := assert.New(t)

	s, shutdown := newTestServer(t, true, nil)
	defer shutdown()
	rec := serve(s, http.MethodGet, "/healthcheck")
	assert.Equal(http.StatusOK, rec.Code)
	assert.Equal("health_check: OK", rec.Body.String())

	s, shutdown2 := newTestServer(t, false, nil)
	defer shutdown2()
	rec = serve(s, http.MethodGet, "/healthcheck")
	assert.Equal(http.StatusServiceUnavailable, rec.Code)
}

func TestValuesHandler(t *testing.T) {
	assert := assert.New(t)

	s, shutdown := newTestServer(t, true, nil)
	defer shutdown()

	rec := serve(s, http.MethodGet, "/api/values?keys=pac,SYS")
	assert.Equal(http.StatusOK, rec.Code)

	var body map[string]valueResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Error(err)
		return
	}
	assert.Equal(valueResponse{Name: "AC output", Value: 5.0, Text: "5.0", Unit: "W"}, body["PAC"])
	assert.Equal("Netzbetrieb", body["SYS"].Text)

	rec = serve(s, http.MethodGet, "/api/values?keys=XYZ")
	assert.Equal(http.StatusBadRequest, rec.Code)

	rec = serve(s, http.MethodGet, "/api/values")
	assert.Equal(http.StatusBadRequest, rec.Code)
}

func TestValuesHandlerInverterError(t *testing.T) {
	s, shutdown := newTestServer(t, true, errors.New("solarmax: not connected"))
	defer shutdown()

	rec := serve(s, http.MethodGet, "/api/values?keys=PAC")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "not connected")
}

func TestDeviceAndCommandHandlers(t *testing.T) {
	assert := assert.New(t)

	s, shutdown := newTestServer(t, true, nil)
	defer shutdown()

	rec := serve(s, http.MethodGet, "/api/device")
	assert.Equal(http.StatusOK, rec.Code)
	assert.Contains(rec.Body.String(), "SolarMax 3000S")

	assert.Equal(http.StatusAccepted, serve(s, http.MethodPost, "/api/poll").Code)
	assert.Equal(http.StatusAccepted, serve(s, http.MethodPost, "/api/reconnect").Code)
}

func TestMetricsRoute(t *testing.T) {
	s, shutdown := newTestServer(t, true, nil)
	defer shutdown()

	rec := serve(s, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "go_goroutines"))
}
