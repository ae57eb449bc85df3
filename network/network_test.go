package network

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestClassify(t *testing.T) {
	Convey("Classify", t, func() {
		Convey("slow-2g and 2g are low", func() {
			So(Classify(Connection{EffectiveType: "slow-2g", Downlink: 50}), ShouldEqual, Low)
			So(Classify(Connection{EffectiveType: "2g", Downlink: 50}), ShouldEqual, Low)
		})

		Convey("3g is medium whatever the downlink", func() {
			So(Classify(Connection{EffectiveType: "3g", Downlink: 50}), ShouldEqual, Medium)
		})

		Convey("A slow downlink is medium", func() {
			So(Classify(Connection{EffectiveType: "4g", Downlink: 1.49}), ShouldEqual, Medium)
		})

		Convey("Anything else is high", func() {
			So(Classify(Connection{EffectiveType: "4g", Downlink: 1.5}), ShouldEqual, High)
			So(Classify(Connection{EffectiveType: "4G", Downlink: 20}), ShouldEqual, High)
		})
	})
}

func TestMonitor(t *testing.T) {
	Convey("Given a probe without connection information", t, func() {
		m := NewMonitor(NoProbe{})

		Convey("The tier is high and stays high", func() {
			So(m.Current(), ShouldResemble, Quality{Tier: High, Downlink: 10, EffectiveType: "4g"})

			m.Report(Connection{EffectiveType: "2g", Downlink: 0.01})
			So(m.Current().Tier, ShouldEqual, High)
		})
	})

	Convey("Given a watching probe", t, func() {
		probe := NewThroughputProbe(10)
		m := NewMonitor(probe)
		defer m.Close()

		var heard []Quality
		unsubscribe := m.Subscribe(func(q Quality) { heard = append(heard, q) })

		So(m.Current().Supported, ShouldBeTrue)
		So(m.Current().Tier, ShouldEqual, High)

		Convey("Slow transfers drag the tier down", func() {
			for i := 0; i < 40; i++ {
				probe.Observe(50_000, time.Second, 0)
			}
			So(m.Current().Tier, ShouldEqual, Medium)
			So(m.Current().EffectiveType, ShouldEqual, "3g")
			So(heard, ShouldNotBeEmpty)
		})

		Convey("Unchanged readings are not broadcast", func() {
			m.Report(Connection{EffectiveType: "3g", Downlink: 1})
			m.Report(Connection{EffectiveType: "3g", Downlink: 1})
			So(heard, ShouldHaveLength, 1)
		})

		Convey("Unsubscribed callbacks are not called", func() {
			unsubscribe()
			m.Report(Connection{EffectiveType: "2g", Downlink: 0.06})
			So(heard, ShouldBeEmpty)
			So(m.Current().Tier, ShouldEqual, Low)
		})
	})
}

func TestStaticProbe(t *testing.T) {
	Convey("StaticProbe", t, func() {
		Convey("Reports nothing when unconfigured", func() {
			So(StaticProbe{}.Connection().IsAbsent(), ShouldBeTrue)
		})

		Convey("Derives the effective type from the downlink", func() {
			conn := StaticProbe{Downlink: 0.5}.Connection().MustGet()
			So(conn.EffectiveType, ShouldEqual, "3g")
		})

		Convey("Keeps an explicit effective type", func() {
			conn := StaticProbe{EffectiveType: "2g", Downlink: 5}.Connection().MustGet()
			So(conn.EffectiveType, ShouldEqual, "2g")
		})
	})

	Convey("EffectiveTypeOf", t, func() {
		So(EffectiveTypeOf(0.01), ShouldEqual, "slow-2g")
		So(EffectiveTypeOf(0.06), ShouldEqual, "2g")
		So(EffectiveTypeOf(0.69), ShouldEqual, "3g")
		So(EffectiveTypeOf(0.7), ShouldEqual, "4g")
	})
}
