package models

// ResultStatus is the closed set of result states the gateway branches on.
// The wire carries raw numeric codes; codes outside this set are kept
// verbatim in storage and classified as StatusUnknown.
type ResultStatus int64

const (
	StatusUnknown ResultStatus = -1
	// StatusAssigned is set when a workunit is first correlated from an
	// upstream reply.
	StatusAssigned     ResultStatus = 1
	StatusDownloading  ResultStatus = 2
	StatusComputeError ResultStatus = 3
	StatusUploading    ResultStatus = 4
	StatusUploaded     ResultStatus = 5
	// StatusCancelled units are excluded from planner aggregates.
	StatusCancelled ResultStatus = 6
)

// StatusFromCode classifies a raw wire code.
func StatusFromCode(code int64) ResultStatus {
	switch ResultStatus(code) {
	case StatusAssigned, StatusDownloading, StatusComputeError,
		StatusUploading, StatusUploaded, StatusCancelled:
		return ResultStatus(code)
	default:
		return StatusUnknown
	}
}

func (s ResultStatus) String() string {
	switch s {
	case StatusAssigned:
		return "assigned"
	case StatusDownloading:
		return "downloading"
	case StatusComputeError:
		return "compute_error"
	case StatusUploading:
		return "uploading"
	case StatusUploaded:
		return "uploaded"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}
