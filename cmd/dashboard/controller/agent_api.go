package controller

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/JustinTDCT/onlineTracker/model"
	"github.com/JustinTDCT/onlineTracker/pkg/utils"
	"github.com/JustinTDCT/onlineTracker/service/rpc"
)

const (
	AgentSecretHeader = "X-Agent-Secret"
	maxReportBytes    = 4 << 20
)

type agentAPI struct {
	r      gin.IRouter
	agents *rpc.AgentHandler
	store  Store
	clock  utils.Clock
	admin  gin.HandlerFunc
}

func (aa *agentAPI) serve() {
	aa.r.POST("/register", aa.register)
	aa.r.POST("/report", aa.report)
	aa.r.GET("/:id/monitors", aa.monitors)
	aa.r.GET("", aa.admin, aa.list)
}

func (aa *agentAPI) register(c *gin.Context) {
	var req model.AgentRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	resp, err := aa.agents.Register(c.Request.Context(), &req)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, resp)
}

func (aa *agentAPI) report(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxReportBytes))
	if err != nil || !gjson.ValidBytes(body) {
		fail(c, http.StatusBadRequest, fmt.Errorf("%w: malformed report", errBadRequest))
		return
	}
	if results := gjson.GetBytes(body, "results"); results.Exists() && !results.IsArray() {
		fail(c, http.StatusBadRequest, fmt.Errorf("%w: results must be an array", errBadRequest))
		return
	}
	var report model.AgentReport
	if err := utils.Json.Unmarshal(body, &report); err != nil {
		fail(c, http.StatusBadRequest, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if report.UUID == "" || report.Secret == "" {
		fail(c, http.StatusBadRequest, fmt.Errorf("%w: uuid and secret are required", errBadRequest))
		return
	}
	resp, err := aa.agents.Report(c.Request.Context(), &report)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, resp)
}

func (aa *agentAPI) monitors(c *gin.Context) {
	secret := c.GetHeader(AgentSecretHeader)
	if secret == "" {
		fail(c, http.StatusUnauthorized, errors.New("missing "+AgentSecretHeader))
		return
	}
	monitors, err := aa.agents.Assignments(c.Request.Context(), c.Param("id"), secret)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, monitors)
}

type agentView struct {
	*model.Agent
	Online bool `json:"online"`
}

func (aa *agentAPI) list(c *gin.Context) {
	ctx := c.Request.Context()
	settings, err := aa.store.GetSettings(ctx)
	if err != nil {
		failErr(c, err)
		return
	}
	agents, err := aa.store.ListAgents(ctx)
	if err != nil {
		failErr(c, err)
		return
	}
	timeout := time.Duration(settings.Int(model.SettingAgentTimeoutMinutes)) * time.Minute
	now := aa.clock.Now()
	views := make([]agentView, 0, len(agents))
	for _, a := range agents {
		views = append(views, agentView{Agent: a, Online: a.Online(now, timeout)})
	}
	ok(c, views)
}
