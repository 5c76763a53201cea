package goyeelight_test

import (
	"bufio"
	"encoding/json"
	"net"
	"strconv"
	"sync"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/lanterndev/goyeelight"
	"github.com/lanterndev/goyeelight/common"
)

type deviceRequest struct {
	ID     int64         `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

// fakeDevice is a minimal device emulation: it acks every command, answers
// property queries with the lamp on, and records the traffic it sees
type fakeDevice struct {
	ln       net.Listener
	requests chan deviceRequest

	mu    sync.Mutex
	conns []net.Conn
}

func newFakeDevice() *fakeDevice {
	ln, err := net.Listen(`tcp`, `127.0.0.1:0`)
	if err != nil {
		panic(err)
	}
	fd := &fakeDevice{ln: ln, requests: make(chan deviceRequest, 64)}
	go fd.acceptLoop()
	return fd
}

func (fd *fakeDevice) addr() (string, int) {
	tcpAddr := fd.ln.Addr().(*net.TCPAddr)
	return tcpAddr.IP.String(), tcpAddr.Port
}

func (fd *fakeDevice) acceptLoop() {
	for {
		conn, err := fd.ln.Accept()
		if err != nil {
			return
		}
		fd.mu.Lock()
		fd.conns = append(fd.conns, conn)
		fd.mu.Unlock()
		go fd.serve(conn)
	}
}

func (fd *fakeDevice) serve(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		req := deviceRequest{}
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			continue
		}
		result := []interface{}{`ok`}
		if req.Method == `get_prop` {
			result = make([]interface{}, len(req.Params))
			for i := range req.Params {
				result[i] = `on`
			}
		}
		buf, _ := json.Marshal(map[string]interface{}{`id`: req.ID, `result`: result})
		_, _ = conn.Write(append(buf, '\r', '\n'))
		select {
		case fd.requests <- req:
		default:
		}
	}
}

func (fd *fakeDevice) notify(params map[string]interface{}) {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	if len(fd.conns) == 0 {
		return
	}
	buf, _ := json.Marshal(map[string]interface{}{`method`: `props`, `params`: params})
	_, _ = fd.conns[len(fd.conns)-1].Write(append(buf, '\r', '\n'))
}

func (fd *fakeDevice) close() {
	_ = fd.ln.Close()
	fd.mu.Lock()
	defer fd.mu.Unlock()
	for _, conn := range fd.conns {
		_ = conn.Close()
	}
}

var _ = Describe("Bulb", func() {
	var (
		fd   *fakeDevice
		bulb *goyeelight.Bulb
	)

	newTestBulb := func(options ...goyeelight.Option) *goyeelight.Bulb {
		ip, port := fd.addr()
		options = append([]goyeelight.Option{
			goyeelight.WithPort(port),
			goyeelight.WithTimeout(time.Second),
		}, options...)
		return goyeelight.NewBulb(ip, options...)
	}

	BeforeEach(func() {
		fd = newFakeDevice()
	})

	AfterEach(func() {
		if bulb != nil {
			bulb.StopListening()
		}
		fd.close()
	})

	It("addresses the device by ip and port", func() {
		ip, port := fd.addr()
		bulb = newTestBulb()
		Expect(bulb.Host()).To(Equal(net.JoinHostPort(ip, strconv.Itoa(port))))
	})

	It("folds ambient defaults into commands", func() {
		bulb = newTestBulb(
			goyeelight.WithEffect(goyeelight.EffectSudden),
			goyeelight.WithDuration(100*time.Millisecond),
		)
		Expect(bulb.Listen(nil)).To(Succeed())

		Expect(bulb.TurnOn()).To(Succeed())
		var req deviceRequest
		Eventually(fd.requests).Should(Receive(&req))
		Expect(req.Method).To(Equal(`set_power`))
		Expect(req.Params).To(Equal([]interface{}{`on`, `sudden`, float64(100)}))
	})

	It("honours per-command overrides", func() {
		bulb = newTestBulb()
		Expect(bulb.Listen(nil)).To(Succeed())

		Expect(bulb.Toggle(goyeelight.Effect(goyeelight.EffectSudden), goyeelight.Duration(time.Second))).To(Succeed())
		var req deviceRequest
		Eventually(fd.requests).Should(Receive(&req))
		Expect(req.Method).To(Equal(`toggle`))
		Expect(req.Params).To(Equal([]interface{}{`sudden`, float64(1000)}))
	})

	It("retrieves properties with the derived brightness", func() {
		bulb = newTestBulb()
		Expect(bulb.Listen(nil)).To(Succeed())

		props, err := bulb.GetProperties(`power`, `bright`)
		Expect(err).NotTo(HaveOccurred())
		Expect(props).To(HaveKeyWithValue(`power`, `on`))
		Expect(props).To(HaveKeyWithValue(`current_brightness`, `on`))
		Expect(bulb.LastProperties()).To(HaveKeyWithValue(`power`, `on`))
	})

	It("turns the light on first when auto-on is enabled", func() {
		bulb = newTestBulb(goyeelight.WithAutoOn(true))
		Expect(bulb.Listen(nil)).To(Succeed())

		Expect(bulb.SetBrightness(40)).To(Succeed())
		// the device reports on, so only the query and the command go out
		var first, second deviceRequest
		Eventually(fd.requests).Should(Receive(&first))
		Eventually(fd.requests).Should(Receive(&second))
		Expect(first.Method).To(Equal(`get_prop`))
		Expect(second.Method).To(Equal(`set_bright`))
	})

	It("publishes typed events to subscriptions", func() {
		bulb = newTestBulb()
		sub, err := bulb.NewSubscription()
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = sub.Close() }()

		Expect(bulb.Listen(nil)).To(Succeed())
		Eventually(sub.Events()).Should(Receive(Equal(common.EventConnected{})))

		fd.notify(map[string]interface{}{`power`: `on`, `bright`: `30`})
		var update common.EventUpdateProperties
		Eventually(sub.Events()).Should(Receive(&update))
		Expect(update.Properties).To(HaveKeyWithValue(`bright`, `30`))
		Eventually(sub.Events()).Should(Receive(Equal(common.EventUpdatePower{Power: true})))
	})
})
