package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/soypat/gpdma"
	"github.com/soypat/gpdma/gpdmareg"
	"github.com/soypat/gpdma/gpdmasim"
	"github.com/soypat/saleae"
	"github.com/soypat/saleae/analyzers"
)

var errMismatch = errors.New("destination does not match source")

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "gpdmareplay - Replay SPI transactions from Saleae binary digital files as chained GPDMA memory copies.\n\tUsage:\n")
		flag.PrintDefaults()
	}
	sdo := flag.String("f-sd", "digital_1.bin", "Input filename: SPI SDO data.")
	enable := flag.String("f-cs", "digital_0.bin", "Input filename: SPI CS/SS data.")
	clk := flag.String("f-clk", "digital_2.bin", "Input filename: SPI clock data.")
	output := flag.String("o", "", "Output filename of replay results. Empty writes to stdout.")
	maxDesc := flag.Uint("max-desc", 16, "Descriptor capacity declared for the replay channel.")
	minSize := flag.Int("min-size", 1, "Skip transactions with fewer SDO bytes.")
	verbose := flag.Bool("v", false, "Log manager internals.")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug - 1
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	start := time.Now()
	txs, err := processSpiFiles(*sdo, *clk, *enable)
	if err != nil {
		log.Fatal(err.Error())
	}
	var payloads []payload
	for _, tx := range txs {
		if len(tx.SDO) < *minSize {
			continue
		}
		payloads = append(payloads, payload{Data: tx.SDO, Start: tx.StartTime()})
	}
	var w io.Writer = os.Stdout
	if *output != "" {
		fp, err := os.Create(*output)
		if err != nil {
			log.Fatal(err.Error())
		}
		defer fp.Close()
		w = fp
	}
	r, err := newReplayer(payloads, uint32(*maxDesc), logger)
	if err != nil {
		log.Fatal(err.Error())
	}
	sum, err := r.run(w, payloads)
	if err != nil {
		log.Fatal(err.Error())
	}
	log.Printf("replayed %d transactions (%d failed, %d descriptors) in %s", sum.Transactions, sum.Failed, sum.Descriptors, time.Since(start))
}

type payload struct {
	Data  []byte
	Start float64
}

type summary struct {
	Transactions int
	Failed       int
	Descriptors  uint32
}

// replayer copies payloads through a single simulated GPDMA channel.
type replayer struct {
	m       *gpdma.Manager
	sim     *gpdmasim.Controller
	src     uint32
	dst     uint32
	maxDesc uint32
	descs   []gpdmareg.Descriptor
	done    bool
	logger  *slog.Logger
}

func newReplayer(payloads []payload, maxDesc uint32, logger *slog.Logger) (*replayer, error) {
	largest := 1
	for _, p := range payloads {
		largest = max(largest, len(p.Data))
	}
	sim := gpdmasim.New(gpdmasim.Config{MemorySize: 2*largest + 8})
	m := gpdma.New(sim)
	sim.SetIRQHandler(m.HandleIRQ)
	if err := m.Init(gpdma.Config{Logger: logger}); err != nil {
		return nil, err
	}
	src, err := sim.Alloc(largest)
	if err != nil {
		return nil, err
	}
	dst, err := sim.Alloc(largest)
	if err != nil {
		return nil, err
	}
	return &replayer{
		m:       m,
		sim:     sim,
		src:     src,
		dst:     dst,
		maxDesc: maxDesc,
		descs:   make([]gpdmareg.Descriptor, gpdma.DescriptorsNeeded(uint32(largest))),
		logger:  logger,
	}, nil
}

func (r *replayer) run(w io.Writer, payloads []payload) (sum summary, err error) {
	for i, p := range payloads {
		ndesc, err := r.replay(p.Data)
		status := "ok"
		if err != nil {
			status = err.Error()
			sum.Failed++
		}
		sum.Transactions++
		sum.Descriptors += ndesc
		_, err = fmt.Fprintf(w, "tx=%4d t=%f size=%5d ndesc=%2d %s\n", i, p.Start, len(p.Data), ndesc, status)
		if err != nil {
			return sum, err
		}
	}
	return sum, nil
}

// replay copies data from simulated source to destination memory through a
// freshly allocated channel and returns the length of the descriptor chain.
func (r *replayer) replay(data []byte) (uint32, error) {
	if len(data) == 0 {
		return 0, gpdma.ErrInvalidParameter
	}
	size := uint32(len(data))
	if err := r.sim.Write(r.src, data); err != nil {
		return 0, err
	}
	ch, err := r.m.AllocateChannel(gpdmareg.AnyChannel, 0, r.maxDesc)
	if err != nil {
		return 0, err
	}
	r.done = false
	err = r.m.RegisterCallbacks(ch, &gpdma.Callbacks{TransferComplete: func() { r.done = true }})
	if err == nil {
		err = r.m.AllocateDescriptor(r.descs, size, ch)
	}
	if err == nil {
		err = r.m.Transfer(ch, r.src, r.dst)
	}
	if err != nil {
		r.release(ch)
		return 0, err
	}
	info, _ := r.m.ChannelInfo(ch)
	if err := r.sim.Run(ch); err != nil {
		r.release(ch)
		return info.Descriptors, err
	}
	if !r.done {
		r.release(ch)
		return info.Descriptors, errors.New("transfer did not complete")
	}
	got := make([]byte, size)
	if err := r.sim.Read(r.dst, got); err != nil {
		return info.Descriptors, err
	}
	if !bytes.Equal(got, data) {
		return info.Descriptors, errMismatch
	}
	return info.Descriptors, nil
}

// release frees ch after a replay that did not complete.
func (r *replayer) release(ch uint8) {
	err := r.m.DeallocateChannel(ch)
	if err != nil && r.logger != nil {
		r.logger.Error("replay:deallocate", slog.Uint64("ch", uint64(ch)), slog.String("err", err.Error()))
	}
}

func processSpiFiles(fsdo, fclk, fenable string) ([]analyzers.TxSPI, error) {
	sdo, err := opendigital(fsdo)
	if err != nil {
		return nil, err
	}
	clk, err := opendigital(fclk)
	if err != nil {
		return nil, err
	}
	enable, err := opendigital(fenable)
	if err != nil {
		return nil, err
	}
	spi := analyzers.SPI{}
	txs, _ := spi.Scan(clk, enable, sdo, sdo)
	return txs, nil
}

func opendigital(filename string) (*saleae.DigitalFile, error) {
	fp, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	df, err := saleae.ReadDigitalFile(fp)
	if err != nil {
		return nil, err
	}
	return df, nil
}
