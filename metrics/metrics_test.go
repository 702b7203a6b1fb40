package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Dosada05/alliance-board/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManager(t *testing.T) {
	Convey("Given a metrics manager", t, func() {
		m := metrics.NewManager()

		Convey("Recorded events show up on the handler", func() {
			m.PushCompleted(metrics.PushOK)
			m.PushCompleted(metrics.PushOK)
			m.PushCompleted(metrics.PushError)
			m.EchoSuppressed()
			m.RemoteChange(true)
			m.HubClientJoined()

			rec := httptest.NewRecorder()
			m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
			So(rec.Code, ShouldEqual, http.StatusOK)
			body := rec.Body.String()
			So(body, ShouldContainSubstring, `alliance_board_sync_pushes_total{result="ok"} 2`)
			So(body, ShouldContainSubstring, `alliance_board_sync_pushes_total{result="error"} 1`)
			So(body, ShouldContainSubstring, "alliance_board_sync_echo_suppressed_total 1")
			So(body, ShouldContainSubstring, `alliance_board_sync_remote_changes_total{outcome="applied"} 1`)
			So(body, ShouldContainSubstring, "alliance_board_hub_clients 1")
		})

		Convey("The registry gathers every collector family", func() {
			m.StatsFetch("ok")
			m.ProxyRequest("teamInfo", "2xx")
			count, err := testutil.GatherAndCount(m.Registry())
			So(err, ShouldBeNil)
			So(count, ShouldBeGreaterThanOrEqualTo, 2)
		})
	})

	Convey("A nil manager is a no-op", t, func() {
		var m *metrics.Manager
		So(func() {
			m.PushCompleted(metrics.PushStale)
			m.EchoSuppressed()
			m.RemoteChange(false)
			m.LocalSyncMerged()
			m.HubClientJoined()
			m.HubClientLeft()
			m.HubMessage("drag")
			m.ProxyRequest("teamInfo", "5xx")
			m.StatsFetch("error")
		}, ShouldNotPanic)
		So(m.Registry(), ShouldBeNil)
		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		So(strings.TrimSpace(rec.Body.String()), ShouldEqual, "404 page not found")
	})
}
