package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/arcfec/fecpacker/fec"
	"github.com/arcfec/fecpacker/internal/config"
	"github.com/arcfec/fecpacker/internal/phy"
	"github.com/arcfec/fecpacker/internal/rscode"
)

func runTX(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) error {
	mtu := int(cfg.Coding.MTU.Bytes())
	link := phy.NewSPIDev(cfg.PHY.Device, cfg.PHY.SpeedHz, fec.HeaderSize+mtu, cfg.PHY.ReconnectBackoff)
	defer link.Close()

	sink := func(buf []byte) {
		if err := link.Send(ctx, buf); err != nil {
			log.Warnw("failed to send datagram", "error", err)
		}
	}

	txCfg := fec.TXConfig{
		CodingParams:    fec.CodingParams{K: cfg.Coding.K, N: cfg.Coding.N},
		MTU:             mtu,
		PHYMTULimit:     int(cfg.PHY.MTULimit.Bytes()),
		QueueDepth:      cfg.Coding.QueueDepth,
		BlockIndexWidth: fec.BlockIndexWidth(cfg.Coding.BlockIndexWidth),
	}
	tx, err := fec.NewTXPacker(txCfg, sink, log, rscode.New)
	if err != nil {
		return fmt.Errorf("fecbridge: failed to start tx packer: %w", err)
	}
	log.Infow("tx packer started", "memory_bound", cfg.MemoryBound().String())

	stopDashboard := startDashboard(ctx, log, func() any { return tx.Stats.Snapshot() })
	defer stopDashboard()

	buf := make([]byte, mtu)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			tx.AddTXPacket(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			tx.Shutdown()
			return fmt.Errorf("fecbridge: reading stdin: %w", err)
		}
		if ctx.Err() != nil {
			break
		}
	}

	if err := tx.Flush(ctx); err != nil {
		log.Warnw("failed to flush trailing block", "error", err)
	}
	tx.Shutdown()
	return ctx.Err()
}

func runRX(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) error {
	mtu := int(cfg.Coding.MTU.Bytes())
	link := phy.NewSPIDev(cfg.PHY.Device, cfg.PHY.SpeedHz, fec.HeaderSize+mtu, cfg.PHY.ReconnectBackoff)
	defer link.Close()

	sink := func(buf []byte) {
		if _, err := os.Stdout.Write(buf); err != nil {
			log.Warnw("failed to write decoded payload", "error", err)
		}
	}

	rxCfg := fec.RXConfig{
		CodingParams:      fec.CodingParams{K: cfg.Coding.K, N: cfg.Coding.N},
		MTU:               mtu,
		PHYMTULimit:       int(cfg.PHY.MTULimit.Bytes()),
		QueueDepth:        cfg.Coding.QueueDepth,
		MaxPendingBlocks:  cfg.RX.MaxPendingBlocks,
		IdleResetDuration: cfg.RX.IdleResetDuration,
	}
	rx, err := fec.NewRXPacker(rxCfg, sink, log, rscode.New)
	if err != nil {
		return fmt.Errorf("fecbridge: failed to start rx packer: %w", err)
	}
	defer rx.Shutdown()
	log.Infow("rx packer started", "memory_bound", cfg.RXMemoryBound().String())

	stopDashboard := startDashboard(ctx, log, func() any { return rx.Stats.Snapshot() })
	defer stopDashboard()

	for {
		d, err := link.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warnw("phy recv failed", "error", err)
			continue
		}

		size, ok := phy.Sized(d.Payload, fec.HeaderSize)
		if !ok {
			rx.Stats.ShortDatagrams.Add(1)
			continue
		}
		if err := rx.AddRXPacketWithRSSI(d.Payload[:size], d.RSSI); err != nil {
			log.Debugw("dropped inbound datagram", "error", err)
		}
	}
}
