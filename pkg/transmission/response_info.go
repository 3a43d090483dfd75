package transmission

import bidib "github.com/trinnguyen/libbidib"

// responseInfo describes what a downstream message type solicits: the
// worst-case size of the answer in bytes and the set of message types a
// node may legally answer with. A zero maxResponse means the message is
// fire and forget and reserves no output buffer capacity.
type responseInfo struct {
	maxResponse int
	answers     []uint8
}

// responseInfoTable is indexed by the downstream message type. It is
// protocol constant data, read-only after init.
var responseInfoTable [256]responseInfo

func init() {
	seed := map[uint8]responseInfo{
		bidib.MsgSysGetMagic:     {6, []uint8{bidib.MsgSysMagic}},
		bidib.MsgSysGetPVersion:  {6, []uint8{bidib.MsgSysPVersion}},
		bidib.MsgSysGetUniqueID:  {11, []uint8{bidib.MsgSysUniqueID}},
		bidib.MsgSysGetSwVersion: {7, []uint8{bidib.MsgSysSwVersion}},
		bidib.MsgSysPing:         {5, []uint8{bidib.MsgSysPong}},
		bidib.MsgSysIdentify:     {5, []uint8{bidib.MsgSysIdentifyState}},
		bidib.MsgGetPktCapacity:  {5, []uint8{bidib.MsgPktCapacity}},
		bidib.MsgNodetabGetall:   {5, []uint8{bidib.MsgNodetabCount}},
		bidib.MsgNodetabGetnext:  {13, []uint8{bidib.MsgNodetab, bidib.MsgNodeNA}},
		bidib.MsgSysGetError:     {6, []uint8{bidib.MsgSysError}},
		bidib.MsgFwUpdateOp:      {6, []uint8{bidib.MsgFwUpdateStat}},

		bidib.MsgFeatureGetall:  {5, []uint8{bidib.MsgFeatureCount}},
		bidib.MsgFeatureGetnext: {6, []uint8{bidib.MsgFeature, bidib.MsgFeatureNA}},
		bidib.MsgFeatureGet:     {6, []uint8{bidib.MsgFeature, bidib.MsgFeatureNA}},
		bidib.MsgFeatureSet:     {6, []uint8{bidib.MsgFeature, bidib.MsgFeatureNA}},
		bidib.MsgVendorEnable:   {5, []uint8{bidib.MsgVendorAck}},
		bidib.MsgVendorDisable:  {5, []uint8{bidib.MsgVendorAck}},
		bidib.MsgVendorSet:      {22, []uint8{bidib.MsgVendor}},
		bidib.MsgVendorGet:      {22, []uint8{bidib.MsgVendor}},
		bidib.MsgStringGet:      {28, []uint8{bidib.MsgString}},
		bidib.MsgStringSet:      {28, []uint8{bidib.MsgString}},

		bidib.MsgBmGetRange:      {20, []uint8{bidib.MsgBmMultiple}},
		bidib.MsgBmAddrGetRange:  {10, []uint8{bidib.MsgBmAddress}},
		bidib.MsgBmGetConfidence: {7, []uint8{bidib.MsgBmConfidence}},

		bidib.MsgBoostQuery: {6, []uint8{bidib.MsgBoostStat}},

		bidib.MsgAccessorySet:     {9, []uint8{bidib.MsgAccessoryState}},
		bidib.MsgAccessoryGet:     {9, []uint8{bidib.MsgAccessoryState}},
		bidib.MsgAccessoryParaSet: {14, []uint8{bidib.MsgAccessoryPara}},
		bidib.MsgAccessoryParaGet: {14, []uint8{bidib.MsgAccessoryPara}},

		bidib.MsgLcOutput:       {6, []uint8{bidib.MsgLcStat, bidib.MsgLcNA, bidib.MsgLcWait}},
		bidib.MsgLcConfigSet:    {12, []uint8{bidib.MsgLcConfig, bidib.MsgLcNA}},
		bidib.MsgLcConfigGet:    {12, []uint8{bidib.MsgLcConfig, bidib.MsgLcNA}},
		bidib.MsgLcKeyQuery:     {6, []uint8{bidib.MsgLcKey}},
		bidib.MsgLcPortQuery:    {6, []uint8{bidib.MsgLcStat, bidib.MsgLcNA}},
		bidib.MsgLcMacroHandle:  {7, []uint8{bidib.MsgLcMacroState}},
		bidib.MsgLcMacroSet:     {9, []uint8{bidib.MsgLcMacro}},
		bidib.MsgLcMacroGet:     {9, []uint8{bidib.MsgLcMacro}},
		bidib.MsgLcMacroParaSet: {10, []uint8{bidib.MsgLcMacroPara}},
		bidib.MsgLcMacroParaGet: {10, []uint8{bidib.MsgLcMacroPara}},

		bidib.MsgCsAllocate:  {5, []uint8{bidib.MsgCsAllocAck}},
		bidib.MsgCsSetState:  {6, []uint8{bidib.MsgCsState}},
		bidib.MsgCsDrive:     {7, []uint8{bidib.MsgCsDriveAck}},
		bidib.MsgCsAccessory: {7, []uint8{bidib.MsgCsAccessoryAck}},
		bidib.MsgCsBinState:  {7, []uint8{bidib.MsgCsDriveAck}},
		bidib.MsgCsPom:       {10, []uint8{bidib.MsgCsPomAck}},
		bidib.MsgCsProg:      {9, []uint8{bidib.MsgCsProgState}},
	}
	for typ, info := range seed {
		responseInfoTable[typ] = info
	}
}

// ResponseInfo returns the reply budget in bytes and the valid reply
// types for a downstream message type.
func ResponseInfo(msgType uint8) (int, []uint8) {
	info := &responseInfoTable[msgType]
	return info.maxResponse, info.answers
}
