// Package query lets the UI and web preview layers interrogate a device
// snapshot with jq expressions instead of growing ad-hoc accessors.
package query

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"

	"github.com/piclone-io/piclone-sdk/types"
)

// Devices evaluates a jq expression against the device snapshot. The
// snapshot is exposed under the same shape lsblk emits, so expressions
// like "blockdevices[0].name" work as they would against lsblk -J.
func Devices(devs []*types.Device, expr string) (string, error) {
	expr = fmt.Sprintf(".%s", expr)
	jsondata := map[string]interface{}{}
	dat, err := json.Marshal(map[string]interface{}{"blockdevices": devs})
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(dat, &jsondata); err != nil {
		return "", err
	}
	q, err := gojq.Parse(expr)
	if err != nil {
		return "", err
	}
	var res string
	iter := q.Run(jsondata)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return res, err
		}
		res += fmt.Sprint(v)
	}
	return res, nil
}
