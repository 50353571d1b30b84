package notify_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/okian/stride/internal/adapters/notify"
	"github.com/okian/stride/internal/domain/activity"
	"github.com/okian/stride/internal/domain/announce"
	"github.com/okian/stride/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"
	"golang.org/x/text/language"
)

func milestoneEvent() announce.Event {
	c := announce.NewComposer(language.English)
	return c.Event(announce.KindMilestone, "session-1", activity.Snapshot{Steps: 1000, DailyGoal: 10000, PercentOfGoal: 10}, time.Unix(0, 0).UTC())
}

type failing struct{}

func (failing) Notify(context.Context, announce.Event) error { return errors.New("boom") }

func TestMulti(t *testing.T) {
	Convey("Given a fan-out with a failing sink between two recorders", t, func() {
		a, b := notify.NewRecorder(0), notify.NewRecorder(0)
		m := notify.NewMulti(a, nil, failing{}, b)
		So(m.Len(), ShouldEqual, 3)

		Convey("When an event is delivered", func() {
			err := m.Notify(context.Background(), milestoneEvent())

			Convey("Then both recorders receive it and the failure is reported", func() {
				So(a.Kinds(), ShouldResemble, []announce.Kind{announce.KindMilestone})
				So(b.Kinds(), ShouldResemble, []announce.Kind{announce.KindMilestone})
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "sink: boom")
			})
		})
	})
}

func TestRecorderLimit(t *testing.T) {
	Convey("Given a recorder holding two events", t, func() {
		r := notify.NewRecorder(2)
		ctx := context.Background()
		for _, k := range []announce.Kind{announce.KindStart, announce.KindPause, announce.KindResume} {
			_ = r.Notify(ctx, announce.Event{Kind: k})
		}

		Convey("Then the oldest is dropped", func() {
			So(r.Kinds(), ShouldResemble, []announce.Kind{announce.KindPause, announce.KindResume})
			So(r.Events(), ShouldHaveLength, 2)
		})
	})
}

func TestLog(t *testing.T) {
	Convey("Given a log notifier", t, func() {
		var buf bytes.Buffer
		So(logger.InitWithWriter(&buf), ShouldBeNil)
		n := notify.NewLog(logger.Get())

		Convey("When notified", func() {
			So(n.Notify(context.Background(), milestoneEvent()), ShouldBeNil)

			Convey("Then the spoken text is logged", func() {
				So(buf.String(), ShouldContainSubstring, "You've reached 1,000 steps")
				So(buf.String(), ShouldContainSubstring, "kind=milestone")
			})
		})
	})
}

func dialHub(t *testing.T, hub *notify.Hub) (*websocket.Conn, *httptest.Server) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Attach(conn)
	}))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	return conn, srv
}

func TestHub(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	Convey("Given a hub with one websocket client", t, func() {
		hub := notify.NewHub(notify.WithHubLogger(logger.Nop()))
		conn, srv := dialHub(t, hub)
		defer srv.Close()
		defer conn.Close()

		So(hub.ClientCount(), ShouldEqual, 1)

		Convey("When an event is broadcast", func() {
			So(hub.Notify(context.Background(), milestoneEvent()), ShouldBeNil)
			_ = conn.SetReadDeadline(time.Now().Add(time.Second))
			_, data, err := conn.ReadMessage()
			So(err, ShouldBeNil)

			Convey("Then the client receives it as JSON", func() {
				var ev announce.Event
				So(json.Unmarshal(data, &ev), ShouldBeNil)
				So(ev.Kind, ShouldEqual, announce.KindMilestone)
				So(ev.Snapshot.Steps, ShouldEqual, 1000)
			})
		})

		Convey("When the hub closes", func() {
			hub.Close()
			_ = conn.SetReadDeadline(time.Now().Add(time.Second))
			_, _, err := conn.ReadMessage()

			Convey("Then the client sees a normal closure", func() {
				So(websocket.IsCloseError(err, websocket.CloseNormalClosure), ShouldBeTrue)
				So(hub.ClientCount(), ShouldEqual, 0)
			})
		})

		Convey("When the client disconnects", func() {
			conn.Close()
			deadline := time.Now().Add(time.Second)
			for hub.ClientCount() > 0 && time.Now().Before(deadline) {
				time.Sleep(time.Millisecond)
			}

			Convey("Then it is removed", func() {
				So(hub.ClientCount(), ShouldEqual, 0)
			})
		})

		Reset(func() { hub.Close() })
	})
}

func TestRedis(t *testing.T) {
	Convey("Given a redis server", t, func() {
		s := miniredis.NewMiniRedis()
		So(s.Start(), ShouldBeNil)
		stopped := false
		stop := func() {
			if !stopped {
				stopped = true
				s.Close()
			}
		}
		defer stop()
		ctx := context.Background()
		client, err := notify.DialRedis(ctx, s.Addr())
		So(err, ShouldBeNil)
		defer client.Close()

		Convey("When an event is published", func() {
			sub := client.Subscribe(ctx, "test:events")
			defer sub.Close()
			_, err := sub.Receive(ctx)
			So(err, ShouldBeNil)

			pub := notify.NewRedisPublisher(client, "test:events")
			So(pub.Notify(ctx, milestoneEvent()), ShouldBeNil)

			Convey("Then subscribers receive the JSON event", func() {
				msg, err := sub.ReceiveMessage(ctx)
				So(err, ShouldBeNil)
				So(msg.Channel, ShouldEqual, "test:events")
				So(msg.Payload, ShouldContainSubstring, `"kind":"milestone"`)
			})
		})

		Convey("When a relay forwards to a hub", func() {
			hub := notify.NewHub(notify.WithHubLogger(logger.Nop()))
			conn, srv := dialHub(t, hub)
			defer srv.Close()
			defer conn.Close()
			defer hub.Close()

			relay := notify.NewRedisRelay(client, "", hub, logger.Nop())
			So(relay.Start(ctx), ShouldBeNil)
			defer relay.Close()

			pub := notify.NewRedisPublisher(client, "")
			So(pub.Channel(), ShouldEqual, notify.DefaultRedisChannel)
			So(pub.Notify(ctx, milestoneEvent()), ShouldBeNil)

			Convey("Then websocket clients see the event", func() {
				_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
				_, data, err := conn.ReadMessage()
				So(err, ShouldBeNil)
				So(string(data), ShouldContainSubstring, `"session_id":"session-1"`)
			})
		})

		Convey("When redis is unreachable", func() {
			addr := s.Addr()
			stop()
			_, err := notify.DialRedis(ctx, addr)

			Convey("Then dialing fails", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When publishing after the server is gone", func() {
			pub := notify.NewRedisPublisher(client, "x")
			stop()

			Convey("Then the error names the event kind", func() {
				err := pub.Notify(ctx, milestoneEvent())
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "publish milestone event")
			})
		})
	})
}

