package protocol

import (
	"fmt"
	"strings"
)

// CommandName returns a short name for a command code.
func CommandName(cmd uint8) string {
	switch cmd {
	case CmdNavUpdate:
		return "NavUpd"
	case CmdGetConfig:
		return "GetCfg"
	case CmdSetConfig:
		return "SetCfg"
	case CmdGetStats:
		return "GetStats"
	case CmdSetLink:
		return "SetLink"
	case CmdGetStorageStats:
		return "GetStor"
	case CmdPing:
		return "Ping"
	case CmdFactoryReset:
		return "FctRst"
	case CmdGetVersion:
		return "GetVer"
	case CmdDiscover:
		return "Discvr"
	default:
		return fmt.Sprintf("Cmd%02X", cmd)
	}
}

// StatusName returns a short name for a status code.
func StatusName(status uint8) string {
	switch status {
	case StatusOK:
		return "OK"
	case StatusError:
		return "Err"
	case StatusInvalidCmd:
		return "InvCmd"
	case StatusInvalidData:
		return "InvData"
	case StatusNotFound:
		return "NotFnd"
	case StatusNoSpace:
		return "NoSpace"
	case StatusVersionMismatch:
		return "VerMis"
	case StatusCRCError:
		return "CRC"
	default:
		return fmt.Sprintf("Sts%02X", status)
	}
}

// Hex formats the start of a frame as hex for log lines. At most limit
// payload bytes are shown, followed by ".." when truncated.
// Format: AA CODE LEN_LO LEN_HI [PAYLOAD]
func Hex(code uint8, payload []byte, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%02X %02X %02X%02X", SyncByte, code, uint8(len(payload)), uint8(len(payload)>>8))

	if len(payload) > 0 {
		b.WriteByte(' ')
	}
	for i := 0; i < len(payload) && i < limit; i++ {
		fmt.Fprintf(&b, "%02X", payload[i])
	}
	if len(payload) > limit {
		b.WriteString("..")
	}
	return b.String()
}
