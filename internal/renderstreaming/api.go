// Package renderstreaming runs one render-streaming connection: it drives a
// pion PeerConnection from signaling messages and reports connection events.
package renderstreaming

import (
	"fmt"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/intervalpli"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/codec"
	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/rtclog"
)

// NewAPI builds the webrtc.API shared by every session: the codec table,
// pion's default interceptors plus periodic PLIs, and zap-backed pion logging.
func NewAPI(logger *zap.Logger) (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := codec.Register(m); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, fmt.Errorf("register default interceptors: %w", err)
	}
	pli, err := intervalpli.NewReceiverInterceptor()
	if err != nil {
		return nil, fmt.Errorf("create pli interceptor: %w", err)
	}
	ir.Add(pli)

	se := webrtc.SettingEngine{LoggerFactory: rtclog.LoggerFactory{Logger: logger}}

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(ir),
		webrtc.WithSettingEngine(se),
	), nil
}
