package controller

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"

	"github.com/JustinTDCT/onlineTracker/model"
	"github.com/JustinTDCT/onlineTracker/pkg/utils"
	"github.com/JustinTDCT/onlineTracker/service/hub"
)

type statusAPI struct {
	r     gin.IRouter
	store Store
	clock utils.Clock
	group singleflight.Group
}

func (sa *statusAPI) serve() {
	sa.r.GET("/status", sa.overview)
	sa.r.GET("/monitors/:id/history", sa.history)
	sa.r.GET("/monitors/:id/alerts", sa.alerts)
	sa.r.GET("/statuses/:id", sa.detail)
}

type monitorOverview struct {
	Monitor *model.Monitor    `json:"monitor"`
	Latest  *hub.StatusUpdate `json:"latest,omitempty"`
}

const overviewTimeout = 10 * time.Second

// overview 所有监控及其最新状态，并发请求合并为一次查询
// The shared query is detached from the request that happens to lead it.
func (sa *statusAPI) overview(c *gin.Context) {
	v, err, _ := sa.group.Do("overview", func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), overviewTimeout)
		defer cancel()
		return sa.buildOverview(ctx)
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, v)
}

func (sa *statusAPI) buildOverview(ctx context.Context) ([]monitorOverview, error) {
	monitors, err := sa.store.ListMonitors(ctx)
	if err != nil {
		return nil, err
	}
	latest, err := sa.store.LatestStatuses(ctx)
	if err != nil {
		return nil, err
	}
	ret := make([]monitorOverview, 0, len(monitors))
	for _, m := range monitors {
		item := monitorOverview{Monitor: m}
		if r, has := latest[m.ID]; has {
			if item.Latest, err = hub.NewStatusUpdate(m, r); err != nil {
				return nil, err
			}
		}
		ret = append(ret, item)
	}
	return ret, nil
}

func (sa *statusAPI) history(c *gin.Context) {
	id, valid := idParam(c)
	if !valid {
		return
	}
	records, err := sa.store.GetRecentStatuses(c.Request.Context(), id, limitQuery(c, 100, 1000))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, records)
}

func (sa *statusAPI) alerts(c *gin.Context) {
	id, valid := idParam(c)
	if !valid {
		return
	}
	records, err := sa.store.ListAlerts(c.Request.Context(), id, limitQuery(c, 50, 500))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, records)
}

func (sa *statusAPI) detail(c *gin.Context) {
	id, valid := idParam(c)
	if !valid {
		return
	}
	r, err := sa.store.GetStatusDetail(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, r)
}
