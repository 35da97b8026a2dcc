//go:build windows

package webcam

/*
#cgo CFLAGS: -DCOBJMACROS
#cgo LDFLAGS: -lmfplat -lmf -lmfreadwrite -lmfuuid -lole32

#include <windows.h>
#include <mfapi.h>
#include <mfidl.h>
#include <mfreadwrite.h>
#include <mferror.h>
#include <stdlib.h>
#include <string.h>

#define CAM_STREAM ((DWORD)MF_SOURCE_READER_FIRST_VIDEO_STREAM)

static int camStarted = 0;

static HRESULT camStartup() {
    if (camStarted) {
        return S_OK;
    }
    HRESULT hr = CoInitializeEx(NULL, COINIT_MULTITHREADED);
    if (FAILED(hr) && hr != RPC_E_CHANGED_MODE) {
        return hr;
    }
    hr = MFStartup(MF_VERSION, MFSTARTUP_FULL);
    if (SUCCEEDED(hr)) {
        camStarted = 1;
    }
    return hr;
}

static HRESULT camEnumerate(IMFActivate ***devices, UINT32 *count) {
    HRESULT hr = camStartup();
    if (FAILED(hr)) return hr;

    IMFAttributes *attr = NULL;
    hr = MFCreateAttributes(&attr, 1);
    if (FAILED(hr)) return hr;
    hr = IMFAttributes_SetGUID(attr, &MF_DEVSOURCE_ATTRIBUTE_SOURCE_TYPE, &MF_DEVSOURCE_ATTRIBUTE_SOURCE_TYPE_VIDCAP_GUID);
    if (SUCCEEDED(hr)) hr = MFEnumDeviceSources(attr, devices, count);
    IMFAttributes_Release(attr);
    return hr;
}

static void camFreeDevices(IMFActivate **devices, UINT32 count) {
    for (UINT32 i = 0; i < count; i++) {
        if (devices[i]) IMFActivate_Release(devices[i]);
    }
    CoTaskMemFree(devices);
}

static HRESULT camCount(UINT32 *count) {
    IMFActivate **devices = NULL;
    *count = 0;
    HRESULT hr = camEnumerate(&devices, count);
    if (FAILED(hr)) return hr;
    camFreeDevices(devices, *count);
    return S_OK;
}

// camName writes the UTF-8 friendly name of device index into buf.
static HRESULT camName(UINT32 index, char *buf, int bufLen) {
    IMFActivate **devices = NULL;
    UINT32 count = 0;
    HRESULT hr = camEnumerate(&devices, &count);
    if (FAILED(hr)) return hr;
    if (index >= count) {
        camFreeDevices(devices, count);
        return E_INVALIDARG;
    }

    WCHAR *wname = NULL;
    UINT32 wlen = 0;
    hr = IMFActivate_GetAllocatedString(devices[index], &MF_DEVSOURCE_ATTRIBUTE_FRIENDLY_NAME, &wname, &wlen);
    if (SUCCEEDED(hr)) {
        int n = WideCharToMultiByte(CP_UTF8, 0, wname, -1, buf, bufLen, NULL, NULL);
        if (n == 0) buf[0] = '\0';
        CoTaskMemFree(wname);
    }
    camFreeDevices(devices, count);
    return hr;
}

static HRESULT camOpen(UINT32 index, IMFSourceReader **reader) {
    IMFActivate **devices = NULL;
    UINT32 count = 0;
    *reader = NULL;
    HRESULT hr = camEnumerate(&devices, &count);
    if (FAILED(hr)) return hr;
    if (index >= count) {
        camFreeDevices(devices, count);
        return E_INVALIDARG;
    }

    IMFMediaSource *source = NULL;
    hr = IMFActivate_ActivateObject(devices[index], &IID_IMFMediaSource, (void**)&source);
    if (SUCCEEDED(hr)) {
        hr = MFCreateSourceReaderFromMediaSource(source, NULL, reader);
        IMFMediaSource_Release(source);
    }
    camFreeDevices(devices, count);
    return hr;
}

static HRESULT camFormat(IMFSourceReader *reader, DWORD index, UINT32 *fourcc, UINT32 *width, UINT32 *height, UINT32 *rateNum, UINT32 *rateDen) {
    IMFMediaType *type = NULL;
    HRESULT hr = IMFSourceReader_GetNativeMediaType(reader, CAM_STREAM, index, &type);
    if (FAILED(hr)) return hr;

    GUID subtype;
    UINT64 v = 0;
    *fourcc = 0;
    *width = *height = *rateNum = *rateDen = 0;
    if (SUCCEEDED(IMFMediaType_GetGUID(type, &MF_MT_SUBTYPE, &subtype))) {
        *fourcc = subtype.Data1;
    }
    if (SUCCEEDED(IMFMediaType_GetUINT64(type, &MF_MT_FRAME_SIZE, &v))) {
        *width = (UINT32)(v >> 32);
        *height = (UINT32)(v & 0xFFFFFFFF);
    }
    if (SUCCEEDED(IMFMediaType_GetUINT64(type, &MF_MT_FRAME_RATE, &v))) {
        *rateNum = (UINT32)(v >> 32);
        *rateDen = (UINT32)(v & 0xFFFFFFFF);
    }
    IMFMediaType_Release(type);
    return S_OK;
}

// camSetFormat selects the native type at index so samples arrive undecoded.
static HRESULT camSetFormat(IMFSourceReader *reader, DWORD index) {
    IMFMediaType *type = NULL;
    HRESULT hr = IMFSourceReader_GetNativeMediaType(reader, CAM_STREAM, index, &type);
    if (FAILED(hr)) return hr;
    hr = IMFSourceReader_SetCurrentMediaType(reader, CAM_STREAM, NULL, type);
    IMFMediaType_Release(type);
    return hr;
}

// camRead blocks for the next sample. A stream tick leaves *data NULL.
static HRESULT camRead(IMFSourceReader *reader, BYTE **data, DWORD *len, LONGLONG *time, LONGLONG *duration, DWORD *flags) {
    IMFSample *sample = NULL;
    *data = NULL;
    *len = 0;
    *time = 0;
    *duration = 0;

    HRESULT hr = IMFSourceReader_ReadSample(reader, CAM_STREAM, 0, NULL, flags, time, &sample);
    if (FAILED(hr)) return hr;
    if (!sample) return S_OK;

    IMFSample_GetSampleDuration(sample, duration);

    IMFMediaBuffer *buffer = NULL;
    hr = IMFSample_ConvertToContiguousBuffer(sample, &buffer);
    if (SUCCEEDED(hr)) {
        BYTE *src = NULL;
        DWORD n = 0;
        hr = IMFMediaBuffer_Lock(buffer, &src, NULL, &n);
        if (SUCCEEDED(hr)) {
            *data = (BYTE*)malloc(n);
            if (*data) {
                memcpy(*data, src, n);
                *len = n;
            } else {
                hr = E_OUTOFMEMORY;
            }
            IMFMediaBuffer_Unlock(buffer);
        }
        IMFMediaBuffer_Release(buffer);
    }
    IMFSample_Release(sample);
    return hr;
}

static void camClose(IMFSourceReader *reader) {
    if (reader) IMFSourceReader_Release(reader);
}
*/
import "C"

import (
	"context"
	"fmt"
	"io"
	"time"
	"unsafe"

	"github.com/ideamans/go-l10n"

	"github.com/user/mjpegcap/pkg/ports"
)

const (
	hrNoMoreTypes = 0xC00D36B9

	readerFlagEndOfStream = 0x00000002
	readerFlagStreamTick  = 0x00000100
)

func hresult(op string, hr C.HRESULT) error {
	if int32(hr) >= 0 {
		return nil
	}
	return fmt.Errorf("%s: HRESULT 0x%08X", op, uint32(hr))
}

func listDevices(fs ports.FileSystem, logger ports.Logger) ([]ports.DeviceInfo, error) {
	var count C.UINT32
	if err := hresult("enumerate devices", C.camCount(&count)); err != nil {
		return nil, err
	}

	devices := make([]ports.DeviceInfo, 0, int(count))
	buf := make([]byte, 512)
	for i := 0; i < int(count); i++ {
		name := fmt.Sprintf("camera %d", i)
		hr := C.camName(C.UINT32(i), (*C.char)(unsafe.Pointer(&buf[0])), C.int(len(buf)))
		if hresult("get device name", hr) == nil {
			name = C.GoString((*C.char)(unsafe.Pointer(&buf[0])))
		}
		devices = append(devices, ports.DeviceInfo{Index: i, Name: name})
	}
	return devices, nil
}

// mfReader reads compressed samples from a Media Foundation source reader.
type mfReader struct {
	reader    *C.IMFSourceReader
	info      ports.DeviceInfo
	logger    ports.Logger
	native    []ports.MediaType
	mediaType ports.MediaType
}

func openDevice(info ports.DeviceInfo, logger ports.Logger) (ports.SampleReader, error) {
	var reader *C.IMFSourceReader
	if err := hresult("activate "+info.Name, C.camOpen(C.UINT32(info.Index), &reader)); err != nil {
		return nil, err
	}
	logger.Debug(l10n.F("Opened %s", info.Name))
	return &mfReader{reader: reader, info: info, logger: logger}, nil
}

func (r *mfReader) Formats() ([]ports.MediaType, error) {
	if r.native != nil {
		return r.native, nil
	}
	var formats []ports.MediaType
	for index := 0; ; index++ {
		var fourcc, w, h, num, den C.UINT32
		hr := C.camFormat(r.reader, C.DWORD(index), &fourcc, &w, &h, &num, &den)
		if uint32(hr) == hrNoMoreTypes {
			break
		}
		if err := hresult("get native media type", hr); err != nil {
			return nil, err
		}
		subtype := ports.FourCCFromCode(uint32(fourcc))
		formats = append(formats, ports.MediaType{
			Subtype:      subtype,
			Width:        int(w),
			Height:       int(h),
			FrameRateNum: int(num),
			FrameRateDen: int(den),
			Compressed:   subtype == ports.SubtypeMJPG,
		})
	}
	r.native = formats
	return formats, nil
}

func (r *mfReader) SetMediaType(mt ports.MediaType) (ports.MediaType, error) {
	if err := checkRequest(mt); err != nil {
		return ports.MediaType{}, err
	}
	formats, err := r.Formats()
	if err != nil {
		return ports.MediaType{}, err
	}

	// Prefer an exact frame rate match, then any rate at the requested size.
	index := -1
	for i, f := range formats {
		if f.Subtype != mt.Subtype || f.Width != mt.Width || f.Height != mt.Height {
			continue
		}
		if index < 0 || (mt.FrameRate() > 0 && f.FrameRate() == mt.FrameRate()) {
			index = i
		}
	}
	if index < 0 {
		return ports.MediaType{}, fmt.Errorf("%w: %s on %s", ErrFormatUnsupported, mt, r.info.Name)
	}

	if err := hresult("set current media type", C.camSetFormat(r.reader, C.DWORD(index))); err != nil {
		return ports.MediaType{}, err
	}
	r.mediaType = formats[index]
	return r.mediaType, nil
}

func (r *mfReader) ReadSample(ctx context.Context) (*ports.Sample, error) {
	if r.mediaType.Subtype == "" {
		return nil, ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data *C.BYTE
	var length C.DWORD
	var ts, duration C.LONGLONG
	var flags C.DWORD
	if err := hresult("read sample", C.camRead(r.reader, &data, &length, &ts, &duration, &flags)); err != nil {
		return nil, err
	}
	if data == nil {
		if uint32(flags)&readerFlagEndOfStream != 0 {
			return nil, io.EOF
		}
		if uint32(flags)&readerFlagStreamTick != 0 {
			r.logger.Debug(l10n.T("Stream tick"))
		}
		return tickSample(time.Duration(ts) * 100), nil
	}

	buf := C.GoBytes(unsafe.Pointer(data), C.int(length))
	C.free(unsafe.Pointer(data))

	sample := ports.NewSample(buf, time.Duration(ts)*100, nil)
	sample.Duration = time.Duration(duration) * 100
	if uint32(flags)&readerFlagEndOfStream != 0 {
		sample.Flags |= ports.FlagEndOfStream
	}
	return sample, nil
}

func (r *mfReader) Close() error {
	if r.reader != nil {
		C.camClose(r.reader)
		r.reader = nil
	}
	return nil
}
