package controller

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/JustinTDCT/onlineTracker/model"
)

const maskedValue = "********"

// secretSettings are never returned in clear text.
var secretSettings = []string{model.SettingSMTPPassword, model.SettingSharedSecret}

type manageAPI struct {
	r     gin.IRouter
	store Store
}

func (ma *manageAPI) serve() {
	ma.r.GET("/monitors", ma.listMonitors)
	ma.r.POST("/monitors", ma.createMonitor)
	ma.r.PUT("/monitors/:id", ma.updateMonitor)
	ma.r.DELETE("/monitors/:id", ma.deleteMonitor)

	ma.r.GET("/settings", ma.getSettings)
	ma.r.PUT("/settings", ma.putSettings)

	ma.r.GET("/pending-agents", ma.pendingAgents)

	ma.r.GET("/push-receivers", ma.listPushReceivers)
	ma.r.POST("/push-receivers", ma.createPushReceiver)
}

type monitorForm struct {
	Name          string            `json:"name" binding:"required"`
	Type          string            `json:"type" binding:"required"`
	Target        string            `json:"target" binding:"required"`
	CheckInterval int               `json:"check_interval"`
	Enabled       *bool             `json:"enabled"`
	AgentID       *string           `json:"agent_id"`
	Config        model.ProbeConfig `json:"config"`
}

func (mf *monitorForm) apply(m *model.Monitor) error {
	kind, err := model.ParseMonitorKind(mf.Type)
	if err != nil {
		return err
	}
	m.Name = strings.TrimSpace(mf.Name)
	m.Kind = kind
	m.Target = strings.TrimSpace(mf.Target)
	m.CheckInterval = mf.CheckInterval
	if m.CheckInterval == 0 {
		m.CheckInterval = model.DefaultCheckInterval
	}
	m.Enabled = mf.Enabled == nil || *mf.Enabled
	m.AgentID = nil
	if mf.AgentID != nil && strings.TrimSpace(*mf.AgentID) != "" {
		id := strings.TrimSpace(*mf.AgentID)
		m.AgentID = &id
	}
	m.Config = mf.Config
	return m.Validate()
}

func (ma *manageAPI) listMonitors(c *gin.Context) {
	monitors, err := ma.store.ListMonitors(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, monitors)
}

func (ma *manageAPI) createMonitor(c *gin.Context) {
	var mf monitorForm
	if err := c.ShouldBindJSON(&mf); err != nil {
		fail(c, http.StatusBadRequest, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	var m model.Monitor
	if err := mf.apply(&m); err != nil {
		failErr(c, err)
		return
	}
	if err := ma.store.CreateMonitor(c.Request.Context(), &m); err != nil {
		failErr(c, err)
		return
	}
	ok(c, m)
}

func (ma *manageAPI) updateMonitor(c *gin.Context) {
	id, valid := idParam(c)
	if !valid {
		return
	}
	var mf monitorForm
	if err := c.ShouldBindJSON(&mf); err != nil {
		fail(c, http.StatusBadRequest, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	m, err := ma.store.GetMonitor(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	if err := mf.apply(m); err != nil {
		failErr(c, err)
		return
	}
	if err := ma.store.UpdateMonitor(c.Request.Context(), m); err != nil {
		failErr(c, err)
		return
	}
	ok(c, m)
}

func (ma *manageAPI) deleteMonitor(c *gin.Context) {
	id, valid := idParam(c)
	if !valid {
		return
	}
	if err := ma.store.DeleteMonitor(c.Request.Context(), id); err != nil {
		failErr(c, err)
		return
	}
	ok(c, nil)
}

// getSettings returns every known key, defaults included.
func (ma *manageAPI) getSettings(c *gin.Context) {
	settings, err := ma.store.GetSettings(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ret := make(map[string]string, len(model.DefaultSettings))
	for key := range model.DefaultSettings {
		v := settings.String(key)
		if v != "" && lo.Contains(secretSettings, key) {
			v = maskedValue
		}
		ret[key] = v
	}
	ok(c, ret)
}

func (ma *manageAPI) putSettings(c *gin.Context) {
	var values map[string]string
	if err := c.ShouldBindJSON(&values); err != nil {
		fail(c, http.StatusBadRequest, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	unknown := lo.Filter(lo.Keys(values), func(key string, _ int) bool {
		_, known := model.DefaultSettings[key]
		return !known
	})
	if len(unknown) > 0 {
		fail(c, http.StatusBadRequest, fmt.Errorf("%w: unknown settings %s", errBadRequest, strings.Join(unknown, ", ")))
		return
	}
	// a masked secret echoed back by the client leaves the stored value alone
	values = lo.OmitBy(values, func(key, value string) bool {
		return value == maskedValue && lo.Contains(secretSettings, key)
	})
	if err := ma.store.SetSettings(c.Request.Context(), values); err != nil {
		failErr(c, err)
		return
	}
	ok(c, nil)
}

func (ma *manageAPI) pendingAgents(c *gin.Context) {
	pending, err := ma.store.ListPendingAgents(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, pending)
}

type pushReceiverForm struct {
	Name     string `json:"name" binding:"required"`
	Endpoint string `json:"endpoint" binding:"required"`
	Token    string `json:"token"`
	Enabled  *bool  `json:"enabled"`
}

func (ma *manageAPI) listPushReceivers(c *gin.Context) {
	receivers, err := ma.store.PushReceivers(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, receivers)
}

func (ma *manageAPI) createPushReceiver(c *gin.Context) {
	var pf pushReceiverForm
	if err := c.ShouldBindJSON(&pf); err != nil {
		fail(c, http.StatusBadRequest, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	r := &model.PushReceiver{
		Name:     pf.Name,
		Endpoint: pf.Endpoint,
		Token:    pf.Token,
		Enabled:  pf.Enabled == nil || *pf.Enabled,
	}
	if err := ma.store.CreatePushReceiver(c.Request.Context(), r); err != nil {
		failErr(c, err)
		return
	}
	ok(c, r)
}
