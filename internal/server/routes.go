package server

import (
	"net/http"
	"time"

	"github.com/berfenger/solarmax2mqtt/internal/config"
	"github.com/berfenger/solarmax2mqtt/internal/core/domain"
	"github.com/berfenger/solarmax2mqtt/internal/metrics"
	"github.com/berfenger/solarmax2mqtt/pkg/solarmax"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const requestTimeout = 15 * time.Second

type valueResponse struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Text  string  `json:"text"`
	Unit  string  `json:"unit,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	if s.registry != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler(s.registry)))
	}

	api := e.Group("/api")
	api.GET("/values", s.ValuesHandler)
	api.GET("/device", s.DeviceHandler)
	api.POST("/poll", s.PollHandler)
	api.POST("/reconnect", s.ReconnectHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

// ValuesHandler queries the inverter for ?keys=PAC,SYS in one frame.
func (s *Server) ValuesHandler(c echo.Context) error {
	keys, err := config.ParseQueryKeys(c.QueryParam("keys"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	if len(keys) == 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "missing keys"})
	}

	res, err := s.rootContext.RequestFuture(s.masterActor, domain.QueryRequest{Keys: keys}, requestTimeout).Result()
	if err != nil {
		return c.JSON(http.StatusGatewayTimeout, errorResponse{Error: err.Error()})
	}
	response, ok := res.(domain.QueryResponse)
	if !ok {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "unexpected response"})
	}
	if response.HasResponseError() {
		return c.JSON(http.StatusBadGateway, errorResponse{Error: response.GetResponseError().Error()})
	}

	values := make(map[solarmax.QueryKey]valueResponse, len(response.Values))
	for k, v := range response.Values {
		values[k] = valueResponse{
			Name:  k.Name(),
			Value: v.Float(),
			Text:  v.String(),
			Unit:  v.Unit(),
		}
	}
	return c.JSON(http.StatusOK, values)
}

func (s *Server) DeviceHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetDeviceInfoRequest{}, requestTimeout).Result()
	if err != nil {
		return c.JSON(http.StatusGatewayTimeout, errorResponse{Error: err.Error()})
	}
	response, ok := res.(domain.GetDeviceInfoResponse)
	if !ok {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "unexpected response"})
	}
	if response.HasResponseError() {
		return c.JSON(http.StatusBadGateway, errorResponse{Error: response.GetResponseError().Error()})
	}
	return c.JSON(http.StatusOK, response.Info)
}

func (s *Server) PollHandler(c echo.Context) error {
	s.rootContext.Send(s.masterActor, domain.PollNowRequest{})
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) ReconnectHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ReconnectRequest{}, requestTimeout).Result()
	if err != nil {
		return c.JSON(http.StatusGatewayTimeout, errorResponse{Error: err.Error()})
	}
	if response, ok := res.(domain.ReconnectResponse); ok && response.HasResponseError() {
		return c.JSON(http.StatusBadGateway, errorResponse{Error: response.GetResponseError().Error()})
	}
	return c.NoContent(http.StatusAccepted)
}
