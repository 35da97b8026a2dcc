//go:build windows

package mjpegmft

/*
#cgo CFLAGS: -DCOBJMACROS -D_WIN32_WINNT=0x0602
#cgo LDFLAGS: -lmfplat -lmfuuid -lole32 -luuid

#include <windows.h>
#include <mfapi.h>
#include <mfidl.h>
#include <mferror.h>
#include <mftransform.h>
#include <stdlib.h>
#include <string.h>

typedef struct {
    IMFTransform *transform;
    IMFMediaEventGenerator *events;

    // Last output, owned by the context until the next call.
    BYTE *outData;
    DWORD outLen;
    LONGLONG outTime;
    UINT32 outWidth;
    UINT32 outHeight;
    LONG outStride;
} MJPEGTransform;

typedef struct {
    UINT32 fourcc;
    UINT32 width;
    UINT32 height;
    UINT32 rateNum;
    UINT32 rateDen;
    LONG stride;
} MJPEGTypeInfo;

static int mftStarted = 0;

static HRESULT mftStartup() {
    if (mftStarted) {
        return S_OK;
    }
    HRESULT hr = CoInitializeEx(NULL, COINIT_MULTITHREADED);
    if (FAILED(hr) && hr != RPC_E_CHANGED_MODE) {
        return hr;
    }
    hr = MFStartup(MF_VERSION, MFSTARTUP_NOSOCKET);
    if (SUCCEEDED(hr)) {
        mftStarted = 1;
    }
    return hr;
}

static HRESULT mftCreate(const GUID *clsid, MJPEGTransform **out) {
    *out = NULL;
    HRESULT hr = mftStartup();
    if (FAILED(hr)) return hr;

    IMFTransform *transform = NULL;
    hr = CoCreateInstance(clsid, NULL, CLSCTX_INPROC_SERVER, &IID_IMFTransform, (void**)&transform);
    if (FAILED(hr)) return hr;

    // Asynchronous MFTs reject calls until explicitly unlocked.
    IMFAttributes *attrs = NULL;
    hr = IMFTransform_GetAttributes(transform, &attrs);
    if (SUCCEEDED(hr)) {
        hr = IMFAttributes_SetUINT32(attrs, &MF_TRANSFORM_ASYNC_UNLOCK, TRUE);
        IMFAttributes_Release(attrs);
    }
    if (FAILED(hr)) {
        IMFTransform_Release(transform);
        return hr;
    }

    IMFMediaEventGenerator *events = NULL;
    hr = IMFTransform_QueryInterface(transform, &IID_IMFMediaEventGenerator, (void**)&events);
    if (FAILED(hr)) {
        IMFTransform_Release(transform);
        return hr;
    }

    MJPEGTransform *ctx = (MJPEGTransform*)calloc(1, sizeof(MJPEGTransform));
    if (!ctx) {
        IMFMediaEventGenerator_Release(events);
        IMFTransform_Release(transform);
        return E_OUTOFMEMORY;
    }
    ctx->transform = transform;
    ctx->events = events;
    *out = ctx;
    return S_OK;
}

static HRESULT mftStreamIDs(MJPEGTransform *ctx, DWORD *in, DWORD *out) {
    return IMFTransform_GetStreamIDs(ctx->transform, 1, in, 1, out);
}

static HRESULT mftSetInputType(MJPEGTransform *ctx, DWORD id, UINT32 width, UINT32 height, UINT32 rateNum, UINT32 rateDen) {
    IMFMediaType *type = NULL;
    HRESULT hr = MFCreateMediaType(&type);
    if (FAILED(hr)) return hr;

    hr = IMFMediaType_SetGUID(type, &MF_MT_MAJOR_TYPE, &MFMediaType_Video);
    if (SUCCEEDED(hr)) hr = IMFMediaType_SetGUID(type, &MF_MT_SUBTYPE, &MFVideoFormat_MJPG);
    if (SUCCEEDED(hr)) hr = IMFMediaType_SetUINT32(type, &MF_MT_COMPRESSED, TRUE);
    if (SUCCEEDED(hr)) hr = IMFMediaType_SetUINT64(type, &MF_MT_FRAME_SIZE, ((UINT64)width << 32) | height);
    if (SUCCEEDED(hr)) hr = IMFMediaType_SetUINT64(type, &MF_MT_FRAME_RATE, ((UINT64)rateNum << 32) | rateDen);
    if (SUCCEEDED(hr)) hr = IMFMediaType_SetUINT64(type, &MF_MT_PIXEL_ASPECT_RATIO, ((UINT64)1 << 32) | 1);
    if (SUCCEEDED(hr)) hr = IMFMediaType_SetUINT32(type, &MF_MT_INTERLACE_MODE, MFVideoInterlace_Progressive);
    if (SUCCEEDED(hr)) hr = IMFTransform_SetInputType(ctx->transform, id, type, 0);

    IMFMediaType_Release(type);
    return hr;
}

static void mftDescribe(IMFMediaType *type, MJPEGTypeInfo *info) {
    memset(info, 0, sizeof(*info));

    GUID subtype;
    if (SUCCEEDED(IMFMediaType_GetGUID(type, &MF_MT_SUBTYPE, &subtype))) {
        // Video subtypes are FourCC codes in Data1 of the base GUID.
        info->fourcc = subtype.Data1;
    }
    UINT64 v = 0;
    if (SUCCEEDED(IMFMediaType_GetUINT64(type, &MF_MT_FRAME_SIZE, &v))) {
        info->width = (UINT32)(v >> 32);
        info->height = (UINT32)(v & 0xFFFFFFFF);
    }
    if (SUCCEEDED(IMFMediaType_GetUINT64(type, &MF_MT_FRAME_RATE, &v))) {
        info->rateNum = (UINT32)(v >> 32);
        info->rateDen = (UINT32)(v & 0xFFFFFFFF);
    }
    UINT32 stride = 0;
    if (SUCCEEDED(IMFMediaType_GetUINT32(type, &MF_MT_DEFAULT_STRIDE, &stride))) {
        info->stride = (LONG)stride;
    }
}

static HRESULT mftOutputType(MJPEGTransform *ctx, DWORD id, DWORD index, MJPEGTypeInfo *info) {
    IMFMediaType *type = NULL;
    HRESULT hr = IMFTransform_GetOutputAvailableType(ctx->transform, id, index, &type);
    if (FAILED(hr)) return hr;
    mftDescribe(type, info);
    IMFMediaType_Release(type);
    return S_OK;
}

static HRESULT mftSetOutputType(MJPEGTransform *ctx, DWORD id, DWORD index) {
    IMFMediaType *type = NULL;
    HRESULT hr = IMFTransform_GetOutputAvailableType(ctx->transform, id, index, &type);
    if (FAILED(hr)) return hr;
    hr = IMFTransform_SetOutputType(ctx->transform, id, type, 0);
    IMFMediaType_Release(type);
    return hr;
}

static HRESULT mftMessage(MJPEGTransform *ctx, UINT32 msg) {
    return IMFTransform_ProcessMessage(ctx->transform, (MFT_MESSAGE_TYPE)msg, 0);
}

// mftGetEvent blocks until the transform queues an event.
static HRESULT mftGetEvent(MJPEGTransform *ctx, DWORD *eventType, HRESULT *status) {
    IMFMediaEvent *event = NULL;
    HRESULT hr = IMFMediaEventGenerator_GetEvent(ctx->events, 0, &event);
    if (FAILED(hr)) return hr;

    MediaEventType met = 0;
    hr = IMFMediaEvent_GetType(event, &met);
    if (SUCCEEDED(hr)) hr = IMFMediaEvent_GetStatus(event, status);
    *eventType = (DWORD)met;

    IMFMediaEvent_Release(event);
    return hr;
}

static HRESULT mftProcessInput(MJPEGTransform *ctx, DWORD id, const BYTE *data, DWORD len, LONGLONG time, LONGLONG duration) {
    IMFMediaBuffer *buffer = NULL;
    IMFSample *sample = NULL;
    BYTE *dst = NULL;

    HRESULT hr = MFCreateMemoryBuffer(len, &buffer);
    if (FAILED(hr)) return hr;

    hr = IMFMediaBuffer_Lock(buffer, &dst, NULL, NULL);
    if (SUCCEEDED(hr)) {
        memcpy(dst, data, len);
        IMFMediaBuffer_Unlock(buffer);
        hr = IMFMediaBuffer_SetCurrentLength(buffer, len);
    }
    if (SUCCEEDED(hr)) hr = MFCreateSample(&sample);
    if (SUCCEEDED(hr)) hr = IMFSample_AddBuffer(sample, buffer);
    if (SUCCEEDED(hr)) hr = IMFSample_SetSampleTime(sample, time);
    if (SUCCEEDED(hr) && duration > 0) hr = IMFSample_SetSampleDuration(sample, duration);
    if (SUCCEEDED(hr)) hr = IMFTransform_ProcessInput(ctx->transform, id, sample, 0);

    if (sample) IMFSample_Release(sample);
    IMFMediaBuffer_Release(buffer);
    return hr;
}

static HRESULT mftProcessOutput(MJPEGTransform *ctx, DWORD id) {
    free(ctx->outData);
    ctx->outData = NULL;
    ctx->outLen = 0;

    MFT_OUTPUT_STREAM_INFO streamInfo;
    HRESULT hr = IMFTransform_GetOutputStreamInfo(ctx->transform, id, &streamInfo);
    if (FAILED(hr)) return hr;

    IMFSample *ownSample = NULL;
    int provides = (streamInfo.dwFlags & (MFT_OUTPUT_STREAM_PROVIDES_SAMPLES | MFT_OUTPUT_STREAM_CAN_PROVIDE_SAMPLES)) != 0;
    if (!provides) {
        IMFMediaBuffer *buffer = NULL;
        hr = MFCreateMemoryBuffer(streamInfo.cbSize, &buffer);
        if (FAILED(hr)) return hr;
        hr = MFCreateSample(&ownSample);
        if (SUCCEEDED(hr)) hr = IMFSample_AddBuffer(ownSample, buffer);
        IMFMediaBuffer_Release(buffer);
        if (FAILED(hr)) {
            if (ownSample) IMFSample_Release(ownSample);
            return hr;
        }
    }

    MFT_OUTPUT_DATA_BUFFER output;
    memset(&output, 0, sizeof(output));
    output.dwStreamID = id;
    output.pSample = ownSample;
    DWORD status = 0;

    hr = IMFTransform_ProcessOutput(ctx->transform, 0, 1, &output, &status);
    if (output.pEvents) IMFCollection_Release(output.pEvents);
    if (FAILED(hr)) {
        if (ownSample) IMFSample_Release(ownSample);
        else if (output.pSample) IMFSample_Release(output.pSample);
        return hr;
    }

    IMFSample *sample = output.pSample;
    IMFMediaBuffer *contiguous = NULL;
    hr = IMFSample_ConvertToContiguousBuffer(sample, &contiguous);
    if (SUCCEEDED(hr)) {
        BYTE *src = NULL;
        DWORD len = 0;
        hr = IMFMediaBuffer_Lock(contiguous, &src, NULL, &len);
        if (SUCCEEDED(hr)) {
            ctx->outData = (BYTE*)malloc(len);
            if (ctx->outData) {
                memcpy(ctx->outData, src, len);
                ctx->outLen = len;
            } else {
                hr = E_OUTOFMEMORY;
            }
            IMFMediaBuffer_Unlock(contiguous);
        }
        IMFMediaBuffer_Release(contiguous);
    }
    ctx->outTime = 0;
    IMFSample_GetSampleTime(sample, &ctx->outTime);
    IMFSample_Release(sample);
    if (FAILED(hr)) return hr;

    IMFMediaType *current = NULL;
    if (SUCCEEDED(IMFTransform_GetOutputCurrentType(ctx->transform, id, &current))) {
        MJPEGTypeInfo info;
        mftDescribe(current, &info);
        ctx->outWidth = info.width;
        ctx->outHeight = info.height;
        ctx->outStride = info.stride;
        IMFMediaType_Release(current);
    }
    return S_OK;
}

// mftShutdown shuts the MFT down, which makes a blocked GetEvent return
// MF_E_SHUTDOWN. Transforms without IMFShutdown have nothing to shut down.
static HRESULT mftShutdown(MJPEGTransform *ctx) {
    IMFShutdown *shutdown = NULL;
    HRESULT hr = IMFTransform_QueryInterface(ctx->transform, &IID_IMFShutdown, (void**)&shutdown);
    if (FAILED(hr)) return S_OK;
    hr = IMFShutdown_Shutdown(shutdown);
    IMFShutdown_Release(shutdown);
    return hr;
}

static void mftDestroy(MJPEGTransform *ctx) {
    if (!ctx) return;
    free(ctx->outData);
    if (ctx->events) IMFMediaEventGenerator_Release(ctx->events);
    if (ctx->transform) IMFTransform_Release(ctx->transform);
    free(ctx);
}
*/
import "C"

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/ideamans/go-l10n"
	"golang.org/x/sys/windows"

	"github.com/user/mjpegcap/pkg/ports"
)

// HRESULT values the transform reports as statuses rather than failures.
const (
	hrENotImpl           uint32 = 0x80004001
	hrNoMoreTypes        uint32 = 0xC00D36B9
	hrNotAccepting       uint32 = 0xC00D36B5
	hrNeedMoreInput      uint32 = 0xC00D6D72
	hrStreamChange       uint32 = 0xC00D6D61
	hrTypeNotSet         uint32 = 0xC00D6D60
	hrInvalidMediaType   uint32 = 0xC00D36B4
	hrUnsupportedSubtype uint32 = 0xC00D5212
)

// Media event types raised by asynchronous MFTs.
const (
	meTransformNeedInput     = 601
	meTransformHaveOutput    = 602
	meTransformDrainComplete = 603
)

// MFT_MESSAGE_TYPE values.
const (
	mftMessageCommandFlush         = 0x00000000
	mftMessageCommandDrain         = 0x00000001
	mftMessageNotifyBeginStreaming = 0x10000000
	mftMessageNotifyEndStreaming   = 0x10000001
	mftMessageNotifyEndOfStream    = 0x10000002
	mftMessageNotifyStartOfStream  = 0x10000003
)

type hresultError uint32

func (e hresultError) Error() string {
	return fmt.Sprintf("HRESULT 0x%08X", uint32(e))
}

// check maps an HRESULT to nil, a ports sentinel, or a wrapped failure.
func check(op string, hr C.HRESULT) error {
	code := uint32(hr)
	if int32(code) >= 0 {
		return nil
	}
	switch code {
	case hrNeedMoreInput:
		return ports.ErrNeedMoreInput
	case hrStreamChange:
		return ports.ErrStreamChange
	case hrNotAccepting:
		return ports.ErrNotAccepting
	case hrENotImpl:
		return ports.ErrNotImplemented
	case hrInvalidMediaType, hrUnsupportedSubtype, hrTypeNotSet:
		return fmt.Errorf("%s: %w (%s)", op, ports.ErrInvalidMediaType, hresultError(code))
	}
	return fmt.Errorf("%s: %w", op, hresultError(code))
}

type eventResult struct {
	event  ports.EventType
	status error
	err    error
}

// hardware drives a Media Foundation decoder MFT in asynchronous mode.
type hardware struct {
	ctx    *C.MJPEGTransform
	logger ports.Logger

	mu    sync.Mutex
	types []ports.MediaType

	// pending carries the result of a GetEvent call that outlived its context.
	pending chan eventResult
}

// closeWait bounds how long Close waits for an abandoned GetEvent after shutdown.
const closeWait = 2 * time.Second

func newHardware(clsid string, logger ports.Logger) (ports.Transform, error) {
	guid, err := windows.GUIDFromString("{" + clsid + "}")
	if err != nil {
		return nil, fmt.Errorf("parse CLSID %s: %w", clsid, err)
	}

	var ctx *C.MJPEGTransform
	hr := C.mftCreate((*C.GUID)(unsafe.Pointer(&guid)), &ctx)
	if err := check("create transform "+clsid, hr); err != nil {
		return nil, err
	}
	logger.Debug(l10n.F("Created hardware transform %s", clsid))
	return &hardware{ctx: ctx, logger: logger}, nil
}

func (h *hardware) StreamIDs() (uint32, uint32, error) {
	var in, out C.DWORD
	if err := check("get stream IDs", C.mftStreamIDs(h.ctx, &in, &out)); err != nil {
		return 0, 0, err
	}
	return uint32(in), uint32(out), nil
}

func (h *hardware) SetInputType(streamID uint32, mt ports.MediaType) error {
	if mt.Subtype != ports.SubtypeMJPG {
		return fmt.Errorf("%w: input subtype %s", ports.ErrInvalidMediaType, mt.Subtype)
	}
	num, den := mt.FrameRateNum, mt.FrameRateDen
	if den == 0 {
		num, den = 30, 1
	}
	hr := C.mftSetInputType(h.ctx, C.DWORD(streamID),
		C.UINT32(mt.Width), C.UINT32(mt.Height), C.UINT32(num), C.UINT32(den))
	return check("set input type", hr)
}

func (h *hardware) OutputTypes(streamID uint32) ([]ports.MediaType, error) {
	var types []ports.MediaType
	for index := 0; ; index++ {
		var info C.MJPEGTypeInfo
		hr := C.mftOutputType(h.ctx, C.DWORD(streamID), C.DWORD(index), &info)
		if uint32(hr) == hrNoMoreTypes {
			break
		}
		if err := check("get output type", hr); err != nil {
			return nil, err
		}
		types = append(types, describe(info))
	}

	h.mu.Lock()
	h.types = types
	h.mu.Unlock()
	return append([]ports.MediaType(nil), types...), nil
}

func (h *hardware) SetOutputType(streamID uint32, mt ports.MediaType) error {
	h.mu.Lock()
	index := -1
	for i, t := range h.types {
		if t == mt {
			index = i
			break
		}
	}
	h.mu.Unlock()
	if index < 0 {
		return fmt.Errorf("%w: %s was not offered", ports.ErrInvalidMediaType, mt)
	}
	return check("set output type", C.mftSetOutputType(h.ctx, C.DWORD(streamID), C.DWORD(index)))
}

func (h *hardware) ProcessMessage(msg ports.Message) error {
	var code C.UINT32
	switch msg {
	case ports.MessageFlush:
		code = mftMessageCommandFlush
	case ports.MessageBeginStreaming:
		code = mftMessageNotifyBeginStreaming
	case ports.MessageStartOfStream:
		code = mftMessageNotifyStartOfStream
	case ports.MessageEndOfStream:
		code = mftMessageNotifyEndOfStream
	case ports.MessageDrain:
		code = mftMessageCommandDrain
	case ports.MessageEndStreaming:
		code = mftMessageNotifyEndStreaming
	default:
		return fmt.Errorf("mjpegmft: unsupported message %s", msg)
	}
	return check("process message "+msg.String(), C.mftMessage(h.ctx, code))
}

// NextEvent waits on the MFT's blocking GetEvent in a goroutine so that ctx can
// interrupt the wait. An abandoned wait is picked up by the next call.
func (h *hardware) NextEvent(ctx context.Context) (ports.EventType, error) {
	if h.pending == nil {
		ch := make(chan eventResult, 1)
		h.pending = ch
		c := h.ctx
		go func() {
			ch <- getEvent(c)
		}()
	}

	select {
	case res := <-h.pending:
		h.pending = nil
		if res.err != nil {
			return 0, res.err
		}
		if res.status != nil {
			return 0, fmt.Errorf("event %s: %w", res.event, res.status)
		}
		return res.event, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func getEvent(c *C.MJPEGTransform) eventResult {
	var met C.DWORD
	var status C.HRESULT
	if err := check("get event", C.mftGetEvent(c, &met, &status)); err != nil {
		return eventResult{err: err}
	}

	var ev ports.EventType
	switch met {
	case meTransformNeedInput:
		ev = ports.EventNeedInput
	case meTransformHaveOutput:
		ev = ports.EventHaveOutput
	case meTransformDrainComplete:
		ev = ports.EventDrainComplete
	default:
		return eventResult{err: fmt.Errorf("mjpegmft: unexpected media event %d", uint32(met))}
	}
	return eventResult{event: ev, status: check("event status", status)}
}

func (h *hardware) ProcessInput(streamID uint32, sample *ports.Sample) error {
	if len(sample.Data) == 0 {
		return fmt.Errorf("%w: empty sample", ports.ErrInvalidMediaType)
	}
	hr := C.mftProcessInput(h.ctx, C.DWORD(streamID),
		(*C.BYTE)(unsafe.Pointer(&sample.Data[0])), C.DWORD(len(sample.Data)),
		C.LONGLONG(sample.Timestamp/100), C.LONGLONG(sample.Duration/100))
	return check("process input", hr)
}

func (h *hardware) ProcessOutput(streamID uint32) (*ports.Frame, error) {
	if err := check("process output", C.mftProcessOutput(h.ctx, C.DWORD(streamID))); err != nil {
		return nil, err
	}

	width := int(h.ctx.outWidth)
	height := int(h.ctx.outHeight)
	stride := int(h.ctx.outStride)
	if stride <= 0 {
		stride = width
	}
	return &ports.Frame{
		Data:      C.GoBytes(unsafe.Pointer(h.ctx.outData), C.int(h.ctx.outLen)),
		Width:     width,
		Height:    height,
		Stride:    stride,
		Timestamp: time.Duration(h.ctx.outTime) * 100,
	}, nil
}

// Close shuts the MFT down, waits for an abandoned event wait to return and
// then releases the transform.
func (h *hardware) Close() error {
	if h.ctx == nil {
		return nil
	}
	shutdownErr := check("shut down transform", C.mftShutdown(h.ctx))

	if h.pending != nil {
		select {
		case <-h.pending:
			h.pending = nil
		case <-time.After(closeWait):
			// The wait still holds the event generator; leak it rather than free it underneath.
			h.ctx = nil
			return fmt.Errorf("mjpegmft: event wait still blocked %s after shutdown", closeWait)
		}
	}

	C.mftDestroy(h.ctx)
	h.ctx = nil
	return shutdownErr
}

func describe(info C.MJPEGTypeInfo) ports.MediaType {
	return ports.MediaType{
		Subtype:      ports.FourCCFromCode(uint32(info.fourcc)),
		Width:        int(info.width),
		Height:       int(info.height),
		FrameRateNum: int(info.rateNum),
		FrameRateDen: int(info.rateDen),
		Stride:       int(info.stride),
	}
}
