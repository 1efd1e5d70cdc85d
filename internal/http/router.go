package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/alohomora/internal/http/handlers"
	httpMW "github.com/yungbote/alohomora/internal/http/middleware"
	"github.com/yungbote/alohomora/internal/platform/logger"
)

type RouterConfig struct {
	ServiceName string
	Role        string
	Tracing     bool
	CORSOrigins []string
	Log         *logger.Logger

	HealthHandler   *httpH.HealthHandler
	RegistryHandler *httpH.RegistryHandler
	TokenHandler    *httpH.TokenHandler
	InquiryHandler  *httpH.InquiryHandler
	InstanceHandler *httpH.InstanceHandler
	SyncHandler     *httpH.SyncHandler
	AppHandler      *httpH.AppHandler
}

func newEngine(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Tracing {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.TraceContext(cfg.Role))
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/hello", cfg.HealthHandler.Hello)
	}
	return r
}

// NewAuthorityRouter serves the full registry, token, instance and sync API.
func NewAuthorityRouter(cfg RouterConfig) *gin.Engine {
	r := newEngine(cfg)

	if h := cfg.RegistryHandler; h != nil {
		r.POST("/register_group", h.RegisterGroup)
		r.POST("/register_system", h.RegisterSystem)
		r.POST("/register_function", h.RegisterFunction)
		r.POST("/register_workflow", h.RegisterWorkflow)
		r.GET("/system/:system_id", h.GetSystem)
		r.GET("/system/name/:system_name", h.GetSystemByName)
		r.GET("/workflow/:workflow_id/functions", h.WorkflowFunctions)
	}
	if h := cfg.TokenHandler; h != nil {
		r.POST("/record_token", h.RecordToken)
	}
	if h := cfg.InquiryHandler; h != nil {
		r.POST("/shared_session_inquiry", h.SharedSessionInquiry)
	}
	if h := cfg.SyncHandler; h != nil {
		r.POST("/replica_sync", h.ReplicaSync)
	}
	if h := cfg.InstanceHandler; h != nil {
		r.POST("/create_workflow_instance", h.CreateInstance)
		r.POST("/mark_step_completion", h.MarkStep)
		r.GET("/workflow/:workflow_id/status", h.WorkflowStatus)
	}
	return r
}

// NewReplicaRouter serves the read side mirrored from the authority.
func NewReplicaRouter(cfg RouterConfig) *gin.Engine {
	r := newEngine(cfg)

	if h := cfg.RegistryHandler; h != nil {
		r.POST("/register_system", h.RegisterSystem)
		r.GET("/system/:system_id", h.GetSystem)
		r.GET("/system/name/:system_name", h.GetSystemByName)
	}
	if h := cfg.InquiryHandler; h != nil {
		r.POST("/shared_session_inquiry", h.SharedSessionInquiry)
	}
	return r
}

func NewAppRouter(cfg RouterConfig) *gin.Engine {
	r := newEngine(cfg)

	if h := cfg.AppHandler; h != nil {
		r.POST("/new_session", h.NewSession)
		r.POST("/register_token", h.RegisterToken)
		r.POST("/function", h.Function)
		r.POST("/receive_session_notification", h.ReceiveNotification)
	}
	return r
}
