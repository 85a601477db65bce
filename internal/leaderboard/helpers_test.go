package leaderboard

import (
	"encoding/json"

	logx "dipwatch/pkg/logx"
)

func nopLogger() logx.Logger { return logx.Nop() }

func jsonUnmarshal(s string, dst any) error { return json.Unmarshal([]byte(s), dst) }
