// Package receiver wires the channelizer/demodulator core into a running
// process: the input thread that reads wideband I/Q off the data
// multicast group, one demodulation goroutine per configured channel, the
// status-in thread that applies command packets, and the status-out
// thread that broadcasts each channel's state at a fixed rate.
//
// Grounded on tq.go's per-channel wake-up pattern (wake_up_cond/
// wake_up_mutex, one sync.Cond per radio channel, a producer that fills
// the queue and signals, a consumer goroutine that waits and drains):
// input thread / per-channel demod thread / status-in thread /
// status-out thread, each suspending only at block boundaries.
package receiver

import (
	"context"
	"fmt"
	"math"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/skywave-radio/radiod/internal/channel"
	"github.com/skywave-radio/radiod/internal/config"
	"github.com/skywave-radio/radiod/internal/demod"
	"github.com/skywave-radio/radiod/internal/filter"
	"github.com/skywave-radio/radiod/internal/mcast"
	"github.com/skywave-radio/radiod/internal/osc"
	"github.com/skywave-radio/radiod/internal/rtp"
	"github.com/skywave-radio/radiod/internal/sample"
	"github.com/skywave-radio/radiod/internal/status"
	"github.com/skywave-radio/radiod/internal/tuning"
)

// Mode names a demodulator type a channel can be switched to at runtime,
// matching status.DemodType/RadioMode's 0=linear/1=fm split plus AM as a
// third option this core adds.
type Mode string

const (
	ModeAM     Mode = "am"
	ModeFM     Mode = "fm"
	ModeLinear Mode = "linear"
)

const (
	defaultOutputSampleRate = 8000.0
	blockSize               = 4096 // L, input samples per Execute call
	filterLength            = 4097 // M
	defaultHeadroom         = 0.891 // -1 dBFS
	defaultHangTime         = 1.1
	defaultRecoveryRateDB   = 20.0
)

// Channel is one running receiver channel: its tuning plane, correction
// slice, fast-convolution filter, all three demodulators (so a command can
// switch between them without reallocating state), and its own output RTP
// stream.
type Channel struct {
	Name string

	lo      *osc.Oscillator
	doppler *osc.Oscillator

	Slice  *channel.Slice
	Filter *filter.Filter
	Tuning *tuning.Controller

	AM     *demod.AM
	FM     *demod.FM
	Linear *demod.Linear

	Dispatcher *status.Dispatcher
	compactor  *status.Compactor

	outSock      *mcast.Socket
	outSSRC      uint32
	outSeq       uint16
	outTimestamp uint32
	markerArmed  bool // true once silence has elided a packet, so the next real one sets the marker bit

	sampRateOut float64

	mu          sync.Mutex
	cond        *sync.Cond
	pending     []sample.IQ
	hasPending  bool
	mode        Mode
	shutdown    bool
	statusEmits int  // count of status-out ticks emitted, for the periodic force cadence
	forceStatus bool // set on command arrival, so the next emit is unconditional

	logger *log.Logger
}

// statusForceCadence is how often a periodic full-state refresh is forced
// even with nothing changed, so a remote view that missed an earlier
// delta (the control channel is lossy by design) eventually recovers.
const statusForceCadence = 10

// nextStatusForce reports whether the next status-out emit for this
// channel should be unconditional (force=true to Compactor.Compact):
// every statusForceCadence-th tick, or any tick following a command
// applied to this channel since the last emit.
func (ch *Channel) nextStatusForce() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	force := ch.forceStatus || ch.statusEmits%statusForceCadence == 0
	ch.forceStatus = false
	ch.statusEmits++
	return force
}

// noteCommandApplied marks this channel's next status-out emit as forced,
// so a command's effect is reported even if the field it changed happens
// to coincide with the periodic cadence resetting right after.
func (ch *Channel) noteCommandApplied() {
	ch.mu.Lock()
	ch.forceStatus = true
	ch.mu.Unlock()
}

// SetMode changes the active demodulator. Takes effect at the next block
// boundary: the demod goroutine only reads ch.mode after waking from
// Wait, never mid-block, so the currently active demod parks on the cond
// var at its next block boundary and the new demod wakes with no overlap.
func (ch *Channel) SetMode(m Mode) {
	ch.mu.Lock()
	ch.mode = m
	ch.mu.Unlock()
}

// Mode reports the channel's current demodulator selection.
func (ch *Channel) Mode() Mode {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.mode
}

// SetDemodType switches the active demodulator by the numeric DemodType
// command value (0=linear, 1=fm, 2=am), the same split RadioMode's string
// form selects.
func (ch *Channel) SetDemodType(t int) {
	switch t {
	case 1:
		ch.SetMode(ModeFM)
	case 2:
		ch.SetMode(ModeAM)
	default:
		ch.SetMode(ModeLinear)
	}
}

// SetPLLEnable forwards a PLL_ENABLE command to the linear demodulator's
// Costas/PLL carrier tracker. It updates the linear demodulator in every
// mode; in AM/FM mode the setting takes effect once linear mode is selected.
func (ch *Channel) SetPLLEnable(enable bool) { ch.Linear.SetPLLEnable(enable) }

// SetPLLSquare forwards a PLL_SQUARE command to the linear demodulator.
func (ch *Channel) SetPLLSquare(square bool) { ch.Linear.SetPLLSquare(square) }

// SetIndependentSideband toggles the linear demodulator between mono and
// stereo/ISB output.
func (ch *Channel) SetIndependentSideband(enable bool) {
	if enable {
		ch.Linear.SetChannels(2)
	} else {
		ch.Linear.SetChannels(1)
	}
}

// SetOutputChannels sets the linear demodulator's output channel count
// directly, for a command that wants a specific count rather than the
// ISB on/off shorthand.
func (ch *Channel) SetOutputChannels(n int) { ch.Linear.SetChannels(n) }

func computeDecimate(inRate, outRate float64) int {
	if outRate <= 0 {
		outRate = defaultOutputSampleRate
	}
	d := int(math.Round(inRate / outRate))
	if d < 1 {
		d = 1
	}
	return d
}

func newChannel(c config.Channel, fe config.Frontend, logger *log.Logger) (*Channel, error) {
	outRate := c.OutputSampleRate
	if outRate <= 0 {
		outRate = defaultOutputSampleRate
	}
	decimate := computeDecimate(fe.SampleRate, outRate)

	f, err := filter.New(blockSize, filterLength, decimate, filter.Complex)
	if err != nil {
		return nil, fmt.Errorf("receiver: channel %q: %w", c.Name, err)
	}
	if err := f.Rebuild(c.LowEdge, c.HighEdge, c.KaiserBeta); err != nil {
		return nil, fmt.Errorf("receiver: channel %q: initial filter build: %w", c.Name, err)
	}

	lo := osc.New()
	slice := channel.New(lo)
	doppler := osc.New()

	actualOutRate := fe.SampleRate / float64(decimate)

	am := demod.NewAM(defaultHeadroom, defaultHangTime, defaultRecoveryRateDB, actualOutRate)
	fm := demod.NewFM()
	linear := demod.NewLinear(demod.LinearOptions{
		PLL:      c.Demod.PLL,
		Square:   c.Demod.Square,
		Env:      c.Demod.Env,
		AGC:      c.Demod.AGC,
		Channels: c.Demod.Channels,
	}, actualOutRate)
	if c.Demod.PLL {
		linear.EnablePLL(5) // Hz, matching linear.c's default loop_bw
	}
	if c.Demod.AGC {
		linear.EnableAGC(defaultHeadroom, defaultHangTime, defaultRecoveryRateDB)
	}

	tc := tuning.New(lo, linear.ShiftOsc, doppler, fe.SampleRate)
	tc.Calibrate = fe.Calibrate
	tc.MaxIF = fe.MaxIF
	tc.MinIF = fe.MinIF
	tc.PassbandHalfWidth = math.Abs(c.HighEdge-c.LowEdge) / 2
	if err := tc.SetFreq(c.Frequency, nil); err != nil {
		return nil, fmt.Errorf("receiver: channel %q: initial tune: %w", c.Name, err)
	}

	mode := ModeLinear
	switch c.Mode {
	case "am":
		mode = ModeAM
	case "fm":
		mode = ModeFM
	}

	ch := &Channel{
		Name:        c.Name,
		lo:          lo,
		doppler:     doppler,
		Slice:       slice,
		Filter:      f,
		Tuning:      tc,
		AM:          am,
		FM:          fm,
		Linear:      linear,
		sampRateOut: actualOutRate,
		mode:        mode,
		compactor:   status.NewCompactor(),
		markerArmed: true, // the channel starts silent, so its first real packet is a spurt start
		logger:      logger,
	}
	ch.cond = sync.NewCond(&ch.mu)
	ch.Dispatcher = &status.Dispatcher{
		Tuner:  tc,
		Filter: f,
		Demod:  ch,
		OnUnrecognized: func(t status.Tag) {
			if logger != nil {
				logger.Debug("unrecognized command tag", "channel", c.Name, "tag", t)
			}
		},
	}
	return ch, nil
}

// deliverBlock hands a freshly filtered block to the channel's demod
// goroutine and returns immediately -- the only thing the input thread
// locks is this condition variable.
func (ch *Channel) deliverBlock(block []sample.IQ) {
	ch.mu.Lock()
	ch.pending = block
	ch.hasPending = true
	ch.cond.Signal()
	ch.mu.Unlock()
}

func (ch *Channel) stop() {
	ch.mu.Lock()
	ch.shutdown = true
	ch.cond.Broadcast()
	ch.mu.Unlock()
}

// demodLoop is the per-channel demod thread: it parks on cond until a
// block is ready, demodulates it with whatever mode is active at that
// moment, and sends the resulting audio.
func (ch *Channel) demodLoop() {
	for {
		ch.mu.Lock()
		for !ch.hasPending && !ch.shutdown {
			ch.cond.Wait()
		}
		if ch.shutdown {
			ch.mu.Unlock()
			return
		}
		block := ch.pending
		ch.pending = nil
		ch.hasPending = false
		mode := ch.mode
		ch.mu.Unlock()

		mono, stereo := ch.runDemod(mode, block)
		if err := ch.sendAudio(mono, stereo); err != nil && ch.logger != nil {
			ch.logger.Error("audio send failed", "channel", ch.Name, "err", err)
		}
	}
}

func (ch *Channel) runDemod(mode Mode, block []sample.IQ) (mono []float64, stereo []sample.IQ) {
	switch mode {
	case ModeAM:
		mono, _ = ch.AM.Process(block)
	case ModeFM:
		mono, _ = ch.FM.Process(block, defaultHeadroom, 300, 3000, ch.sampRateOut)
	default:
		mono, stereo, _ = ch.Linear.Process(block)
	}
	return mono, stereo
}

func blockIsSilent(mono []float64, stereo []sample.IQ) bool {
	for _, v := range mono {
		if v != 0 {
			return false
		}
	}
	for _, v := range stereo {
		if v.Complex() != 0 {
			return false
		}
	}
	return true
}

// sendAudio frames one block of demodulated audio as a PCM RTP packet and
// sends it on the channel's output socket, eliding all-silent blocks but
// still advancing the timestamp so the receiving end can tell how much
// audio was skipped: an all-zero block isn't emitted but still advances
// the timestamp, and the first post-silence packet sets the marker bit.
func (ch *Channel) sendAudio(mono []float64, stereo []sample.IQ) error {
	n := len(mono)
	if n == 0 {
		n = len(stereo)
	}
	if n == 0 {
		return nil
	}

	if blockIsSilent(mono, stereo) {
		ch.outTimestamp += uint32(n)
		ch.markerArmed = true
		return nil
	}

	var payload []byte
	var payloadType byte
	if stereo != nil {
		payload = make([]byte, 4*n)
		payloadType = rtp.PayloadPCMStereo
		for i, v := range stereo {
			putPCM16(payload[4*i:], v.Real())
			putPCM16(payload[4*i+2:], v.Imag())
		}
	} else {
		payload = make([]byte, 2*n)
		payloadType = rtp.PayloadPCMMono
		for i, v := range mono {
			putPCM16(payload[2*i:], v)
		}
	}

	hdr := rtp.Header{
		Version:   rtp.Version,
		Marker:    ch.markerArmed,
		Type:      payloadType,
		Seq:       ch.outSeq,
		Timestamp: ch.outTimestamp,
		SSRC:      ch.outSSRC,
	}
	ch.markerArmed = false
	ch.outSeq++
	ch.outTimestamp += uint32(n)

	if ch.outSock == nil {
		return nil
	}
	buf := append(rtp.Encode(hdr), payload...)
	return ch.outSock.Send(buf)
}

func putPCM16(dst []byte, v float64) {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	s := int16(v * 32767)
	dst[0] = byte(s >> 8)
	dst[1] = byte(s)
}

// statusEntries builds the current status packet entries for this channel,
// reported through the same tag registry commands use.
func (ch *Channel) statusEntries() []status.Entry {
	var e status.Encoder
	e.Float64(status.RadioFrequency, ch.Tuning.TargetRF())
	e.Float64(status.FirstLOFrequency, ch.Tuning.FirstLOExact())
	low, high, beta := ch.Filter.Edges()
	e.Float32(status.LowEdge, float32(low))
	e.Float32(status.HighEdge, float32(high))
	e.Float32(status.KaiserBeta, float32(beta))
	e.String(status.RadioMode, string(ch.Mode()))
	e.Int64(status.OutputSSRC, uint64(ch.outSSRC))
	return status.Decode(e.Bytes())
}

// Receiver owns every running channel plus the shared data and status
// sockets.
type Receiver struct {
	Config config.Config
	Logger *log.Logger

	dataSock   *mcast.Socket
	statusSock *mcast.Socket

	Channels  []*Channel
	ssrcIndex map[uint32]*Channel

	inputState rtp.State

	wg       sync.WaitGroup
	shutdown chan struct{}
}

// New builds a Receiver from a decoded configuration: it joins the data
// and status multicast groups and constructs every configured channel, but
// does not yet start any goroutine (call Run for that).
func New(cfg config.Config, logger *log.Logger) (*Receiver, error) {
	var iface *net.Interface
	if cfg.Network.Interface != "" {
		found, err := net.InterfaceByName(cfg.Network.Interface)
		if err != nil {
			return nil, fmt.Errorf("receiver: interface %q: %w", cfg.Network.Interface, err)
		}
		iface = found
	}
	ttl := cfg.Network.TTL
	if ttl <= 0 {
		ttl = 1
	}

	dataSock, err := mcast.Join(cfg.Network.Data, iface, ttl)
	if err != nil {
		return nil, fmt.Errorf("receiver: joining data group: %w", err)
	}
	statusSock, err := mcast.Join(cfg.Network.Status, iface, ttl)
	if err != nil {
		dataSock.Close()
		return nil, fmt.Errorf("receiver: joining status group: %w", err)
	}

	r := &Receiver{
		Config:     cfg,
		Logger:     logger,
		dataSock:   dataSock,
		statusSock: statusSock,
		ssrcIndex:  make(map[uint32]*Channel),
		shutdown:   make(chan struct{}),
	}

	for i, cc := range cfg.Channels {
		ch, err := newChannel(cc, cfg.Frontend, logger)
		if err != nil {
			r.closeSockets()
			return nil, err
		}
		ssrc := uint32(i + 1)
		outAddr := cc.OutputAudio
		if outAddr == "" {
			outAddr = cfg.Network.Audio
		}
		if outAddr != "" {
			outSock, err := mcast.Join(outAddr, iface, ttl)
			if err != nil {
				r.closeSockets()
				return nil, fmt.Errorf("receiver: channel %q: joining audio group: %w", cc.Name, err)
			}
			ch.outSock = outSock
		}
		ch.outSSRC = ssrc
		r.Channels = append(r.Channels, ch)
		r.ssrcIndex[ssrc] = ch
	}

	return r, nil
}

func (r *Receiver) closeSockets() {
	if r.dataSock != nil {
		r.dataSock.Close()
	}
	if r.statusSock != nil {
		r.statusSock.Close()
	}
	for _, ch := range r.Channels {
		if ch.outSock != nil {
			ch.outSock.Close()
		}
	}
}

// Run starts every subsystem goroutine (input, per-channel demod,
// status-in, status-out) and blocks until ctx is canceled, at which point
// it signals every goroutine to stop at its next block boundary and waits
// for them to exit.
func (r *Receiver) Run(ctx context.Context) error {
	for _, ch := range r.Channels {
		r.wg.Add(1)
		go func(c *Channel) {
			defer r.wg.Done()
			c.demodLoop()
		}(ch)
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.inputLoop()
	}()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.statusInLoop()
	}()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.statusOutLoop()
	}()

	<-ctx.Done()
	close(r.shutdown)
	for _, ch := range r.Channels {
		ch.stop()
	}
	r.dataSock.Close()
	r.statusSock.Close()
	r.wg.Wait()
	for _, ch := range r.Channels {
		if ch.outSock != nil {
			ch.outSock.Close()
		}
	}
	return ctx.Err()
}

// inputLoop is the input thread: it blocks on the data socket, decodes the
// RTP-framed wideband I/Q, corrects and spins down a copy for every
// channel, and hands each the resulting filtered block.
func (r *Receiver) inputLoop() {
	buf := make([]byte, 65536)
	for {
		select {
		case <-r.shutdown:
			return
		default:
		}

		n, _, err := r.dataSock.Receive(buf)
		if err != nil {
			select {
			case <-r.shutdown:
				return
			default:
			}
			if r.Logger != nil {
				r.Logger.Error("data socket read failed", "err", err)
			}
			continue
		}

		hdr, off, ok := rtp.Decode(buf[:n])
		if !ok {
			continue
		}
		payload := buf[off:n]

		block, ok := decodePayload(hdr.Type, payload)
		if !ok {
			if r.Logger != nil {
				r.Logger.Warn("unsupported input payload type", "type", hdr.Type)
			}
			continue
		}

		if _, accept := r.inputState.Process(hdr, len(block)); !accept {
			continue
		}

		for _, ch := range r.Channels {
			corrected := make([]sample.IQ, len(block))
			copy(corrected, block)
			ch.Slice.Process(corrected)
			if len(corrected) != ch.Filter.L {
				continue
			}
			out, err := ch.Filter.Execute(corrected)
			if err != nil {
				if r.Logger != nil {
					r.Logger.Error("filter execute failed", "channel", ch.Name, "err", err)
				}
				continue
			}
			ch.deliverBlock(out)
		}
	}
}

// decodePayload converts a wire I/Q payload into baseband samples
// according to its RTP payload type, handling the three supported input
// formats (16-bit little-endian, 8-bit signed, and 12-bit packed
// big-endian interleaved I/Q).
func decodePayload(payloadType byte, payload []byte) ([]sample.IQ, bool) {
	switch payloadType {
	case rtp.PayloadIQ16:
		if len(payload)%4 != 0 {
			return nil, false
		}
		out := make([]sample.IQ, len(payload)/4)
		for i := range out {
			iRaw := int16(uint16(payload[4*i]) | uint16(payload[4*i+1])<<8)
			qRaw := int16(uint16(payload[4*i+2]) | uint16(payload[4*i+3])<<8)
			out[i] = sample.IQ(complex(float64(iRaw)/32768, float64(qRaw)/32768))
		}
		return out, true
	case rtp.PayloadIQ8:
		if len(payload)%2 != 0 {
			return nil, false
		}
		out := make([]sample.IQ, len(payload)/2)
		for i := range out {
			iRaw := int8(payload[2*i])
			qRaw := int8(payload[2*i+1])
			out[i] = sample.IQ(complex(float64(iRaw)/128, float64(qRaw)/128))
		}
		return out, true
	case payloadIQ12:
		// Two 12-bit offset-binary samples packed big-endian into 3 bytes
		// (I then Q), DC-centered at 2048.
		if len(payload)%3 != 0 {
			return nil, false
		}
		out := make([]sample.IQ, len(payload)/3)
		for i := range out {
			b0, b1, b2 := payload[3*i], payload[3*i+1], payload[3*i+2]
			raw := uint32(b0)<<16 | uint32(b1)<<8 | uint32(b2)
			iRaw := int32(raw>>12) - 2048
			qRaw := int32(raw&0xfff) - 2048
			out[i] = sample.IQ(complex(float64(iRaw)/2048, float64(qRaw)/2048))
		}
		return out, true
	default:
		return nil, false
	}
}

// payloadIQ12 is the 12-bit packed big-endian I/Q payload type (not named
// in internal/rtp's constant list because nothing there sends it -- only
// the front end does).
const payloadIQ12 = 99

// statusInLoop is the status-in thread: it blocks on the status socket,
// parses each command packet, and routes it to the channel its OutputSSRC
// entry names (or to the first channel if the packet doesn't name one --
// convenient for a single-channel deployment).
func (r *Receiver) statusInLoop() {
	buf := make([]byte, 4096)
	for {
		select {
		case <-r.shutdown:
			return
		default:
		}

		n, _, err := r.statusSock.Receive(buf)
		if err != nil {
			select {
			case <-r.shutdown:
				return
			default:
			}
			if r.Logger != nil {
				r.Logger.Error("status socket read failed", "err", err)
			}
			continue
		}

		pkt := status.ParsePacket(buf[:n])
		if r.Logger != nil {
			r.Logger.Debug("status packet received", "packet", pkt.String())
		}
		if pkt.Direction != status.DirCommand {
			continue
		}

		target := r.targetChannel(pkt)
		if target == nil {
			continue
		}

		for _, e := range pkt.Entries {
			if e.Tag == status.RadioMode {
				target.SetMode(Mode(status.DecodeString(e.Value)))
			}
		}

		if err := target.Dispatcher.Apply(pkt); err != nil && r.Logger != nil {
			r.Logger.Error("command apply failed", "channel", target.Name, "err", err)
		}
		target.noteCommandApplied()
	}
}

func (r *Receiver) targetChannel(pkt status.Packet) *Channel {
	for _, e := range pkt.Entries {
		if e.Tag == status.OutputSSRC {
			if ch, ok := r.ssrcIndex[uint32(status.DecodeUint(e.Value))]; ok {
				return ch
			}
		}
	}
	if len(r.Channels) > 0 {
		return r.Channels[0]
	}
	return nil
}

// statusOutLoop is the status-out thread: timer-driven at 10Hz, it
// broadcasts each channel's current state, compacted against what was
// last sent. Every channel gets a packet each tick; an idle channel's is just
// the direction byte and the EOL byte.
func (r *Receiver) statusOutLoop() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-r.shutdown:
			return
		case <-ticker.C:
			for _, ch := range r.Channels {
				force := ch.nextStatusForce()
				entries := ch.compactor.Compact(ch.statusEntries(), force)
				buf := status.Encode(status.DirStatus, entries)
				if err := r.statusSock.Send(buf); err != nil && r.Logger != nil {
					r.Logger.Error("status send failed", "channel", ch.Name, "err", err)
				}
			}
		}
	}
}
