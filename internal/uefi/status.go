// Copyright 2026 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package uefi

import "fmt"

const errorBit = 1 << 63

// Status is an EFI_STATUS code. Error codes implement the error interface so
// they can be wrapped and matched with errors.Is.
type Status uint64

// EFI_STATUS codes, UEFI Specification Appendix D.
const (
	Success           Status = 0
	LoadError         Status = errorBit | 1
	InvalidParameter  Status = errorBit | 2
	Unsupported       Status = errorBit | 3
	BadBufferSize     Status = errorBit | 4
	BufferTooSmall    Status = errorBit | 5
	NotReady          Status = errorBit | 6
	DeviceError       Status = errorBit | 7
	WriteProtected    Status = errorBit | 8
	OutOfResources    Status = errorBit | 9
	VolumeCorrupted   Status = errorBit | 10
	VolumeFull        Status = errorBit | 11
	NoMedia           Status = errorBit | 12
	MediaChanged      Status = errorBit | 13
	NotFound          Status = errorBit | 14
	AccessDenied      Status = errorBit | 15
	NoResponse        Status = errorBit | 16
	NoMapping         Status = errorBit | 17
	Timeout           Status = errorBit | 18
	NotStarted        Status = errorBit | 19
	AlreadyStarted    Status = errorBit | 20
	Aborted           Status = errorBit | 21
	SecurityViolation Status = errorBit | 26
	CompromisedData   Status = errorBit | 33
)

var statusNames = map[Status]string{
	Success:           "EFI_SUCCESS",
	LoadError:         "EFI_LOAD_ERROR",
	InvalidParameter:  "EFI_INVALID_PARAMETER",
	Unsupported:       "EFI_UNSUPPORTED",
	BadBufferSize:     "EFI_BAD_BUFFER_SIZE",
	BufferTooSmall:    "EFI_BUFFER_TOO_SMALL",
	NotReady:          "EFI_NOT_READY",
	DeviceError:       "EFI_DEVICE_ERROR",
	WriteProtected:    "EFI_WRITE_PROTECTED",
	OutOfResources:    "EFI_OUT_OF_RESOURCES",
	VolumeCorrupted:   "EFI_VOLUME_CORRUPTED",
	VolumeFull:        "EFI_VOLUME_FULL",
	NoMedia:           "EFI_NO_MEDIA",
	MediaChanged:      "EFI_MEDIA_CHANGED",
	NotFound:          "EFI_NOT_FOUND",
	AccessDenied:      "EFI_ACCESS_DENIED",
	NoResponse:        "EFI_NO_RESPONSE",
	NoMapping:         "EFI_NO_MAPPING",
	Timeout:           "EFI_TIMEOUT",
	NotStarted:        "EFI_NOT_STARTED",
	AlreadyStarted:    "EFI_ALREADY_STARTED",
	Aborted:           "EFI_ABORTED",
	SecurityViolation: "EFI_SECURITY_VIOLATION",
	CompromisedData:   "EFI_COMPROMISED_DATA",
}

// IsError reports whether s has the error bit set.
func (s Status) IsError() bool {
	return s&errorBit != 0
}

func (s Status) Error() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	if s.IsError() {
		return fmt.Sprintf("EFI error %#x", uint64(s&^errorBit))
	}
	return fmt.Sprintf("EFI warning %#x", uint64(s))
}

// parseStatus converts a raw EFI_STATUS into an error, warnings are not
// treated as failures.
func parseStatus(status uint64) error {
	if s := Status(status); s.IsError() {
		return s
	}
	return nil
}
