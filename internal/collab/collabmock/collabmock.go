// Package collabmock holds gomock test doubles for every interface in
// internal/collab, maintained by hand in the shape mockgen emits so
// regenerating stays a drop-in option.
package collabmock

import (
	"reflect"

	"github.com/golang/mock/gomock"

	"go.tansy.dev/comdiv/internal/collab"
	"go.tansy.dev/comdiv/internal/ir"
)

// MockPointerAnalysis is a mock of the PointerAnalysis interface.
type MockPointerAnalysis struct {
	ctrl     *gomock.Controller
	recorder *MockPointerAnalysisMockRecorder
}

type MockPointerAnalysisMockRecorder struct{ mock *MockPointerAnalysis }

func NewMockPointerAnalysis(ctrl *gomock.Controller) *MockPointerAnalysis {
	m := &MockPointerAnalysis{ctrl: ctrl}
	m.recorder = &MockPointerAnalysisMockRecorder{m}
	return m
}

func (m *MockPointerAnalysis) EXPECT() *MockPointerAnalysisMockRecorder { return m.recorder }

func (m *MockPointerAnalysis) PointsTo(v ir.Value) []ir.Value {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "PointsTo", v)
	out, _ := ret[0].([]ir.Value)
	return out
}

func (mr *MockPointerAnalysisMockRecorder) PointsTo(v interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "PointsTo", reflect.TypeOf((*MockPointerAnalysis)(nil).PointsTo), v)
}

func (m *MockPointerAnalysis) AllAllocationSites() []ir.Value {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "AllAllocationSites")
	out, _ := ret[0].([]ir.Value)
	return out
}

func (mr *MockPointerAnalysisMockRecorder) AllAllocationSites() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "AllAllocationSites", reflect.TypeOf((*MockPointerAnalysis)(nil).AllAllocationSites))
}

// MockDominanceInfo is a mock of the DominanceInfo interface.
type MockDominanceInfo struct {
	ctrl     *gomock.Controller
	recorder *MockDominanceInfoMockRecorder
}

type MockDominanceInfoMockRecorder struct{ mock *MockDominanceInfo }

func NewMockDominanceInfo(ctrl *gomock.Controller) *MockDominanceInfo {
	m := &MockDominanceInfo{ctrl: ctrl}
	m.recorder = &MockDominanceInfoMockRecorder{m}
	return m
}

func (m *MockDominanceInfo) EXPECT() *MockDominanceInfoMockRecorder { return m.recorder }

func (m *MockDominanceInfo) Dominates(fn *ir.Function, a, b *ir.BasicBlock) bool {
	ret := m.ctrl.Call(m, "Dominates", fn, a, b)
	out, _ := ret[0].(bool)
	return out
}

func (mr *MockDominanceInfoMockRecorder) Dominates(fn, a, b interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Dominates", reflect.TypeOf((*MockDominanceInfo)(nil).Dominates), fn, a, b)
}

func (m *MockDominanceInfo) IDom(fn *ir.Function, b *ir.BasicBlock) *ir.BasicBlock {
	ret := m.ctrl.Call(m, "IDom", fn, b)
	out, _ := ret[0].(*ir.BasicBlock)
	return out
}

func (mr *MockDominanceInfoMockRecorder) IDom(fn, b interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "IDom", reflect.TypeOf((*MockDominanceInfo)(nil).IDom), fn, b)
}

func (m *MockDominanceInfo) DominanceFrontier(fn *ir.Function, b *ir.BasicBlock) []*ir.BasicBlock {
	ret := m.ctrl.Call(m, "DominanceFrontier", fn, b)
	out, _ := ret[0].([]*ir.BasicBlock)
	return out
}

func (mr *MockDominanceInfoMockRecorder) DominanceFrontier(fn, b interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "DominanceFrontier", reflect.TypeOf((*MockDominanceInfo)(nil).DominanceFrontier), fn, b)
}

func (m *MockDominanceInfo) PostDominates(fn *ir.Function, a, b *ir.BasicBlock) bool {
	ret := m.ctrl.Call(m, "PostDominates", fn, a, b)
	out, _ := ret[0].(bool)
	return out
}

func (mr *MockDominanceInfoMockRecorder) PostDominates(fn, a, b interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "PostDominates", reflect.TypeOf((*MockDominanceInfo)(nil).PostDominates), fn, a, b)
}

func (m *MockDominanceInfo) IPostDom(fn *ir.Function, b *ir.BasicBlock) *ir.BasicBlock {
	ret := m.ctrl.Call(m, "IPostDom", fn, b)
	out, _ := ret[0].(*ir.BasicBlock)
	return out
}

func (mr *MockDominanceInfoMockRecorder) IPostDom(fn, b interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "IPostDom", reflect.TypeOf((*MockDominanceInfo)(nil).IPostDom), fn, b)
}

func (m *MockDominanceInfo) PostDominanceFrontier(fn *ir.Function, b *ir.BasicBlock) []*ir.BasicBlock {
	ret := m.ctrl.Call(m, "PostDominanceFrontier", fn, b)
	out, _ := ret[0].([]*ir.BasicBlock)
	return out
}

func (mr *MockDominanceInfoMockRecorder) PostDominanceFrontier(fn, b interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "PostDominanceFrontier", reflect.TypeOf((*MockDominanceInfo)(nil).PostDominanceFrontier), fn, b)
}

func (m *MockDominanceInfo) Loops(fn *ir.Function) []*collab.Loop {
	ret := m.ctrl.Call(m, "Loops", fn)
	out, _ := ret[0].([]*collab.Loop)
	return out
}

func (mr *MockDominanceInfoMockRecorder) Loops(fn interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Loops", reflect.TypeOf((*MockDominanceInfo)(nil).Loops), fn)
}

// MockCallGraph is a mock of the CallGraph interface.
type MockCallGraph struct {
	ctrl     *gomock.Controller
	recorder *MockCallGraphMockRecorder
}

type MockCallGraphMockRecorder struct{ mock *MockCallGraph }

func NewMockCallGraph(ctrl *gomock.Controller) *MockCallGraph {
	m := &MockCallGraph{ctrl: ctrl}
	m.recorder = &MockCallGraphMockRecorder{m}
	return m
}

func (m *MockCallGraph) EXPECT() *MockCallGraphMockRecorder { return m.recorder }

func (m *MockCallGraph) Callees(call *ir.Inst) []*ir.Function {
	ret := m.ctrl.Call(m, "Callees", call)
	out, _ := ret[0].([]*ir.Function)
	return out
}

func (mr *MockCallGraphMockRecorder) Callees(call interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Callees", reflect.TypeOf((*MockCallGraph)(nil).Callees), call)
}

func (m *MockCallGraph) Callers(fn *ir.Function) []*ir.Inst {
	ret := m.ctrl.Call(m, "Callers", fn)
	out, _ := ret[0].([]*ir.Inst)
	return out
}

func (mr *MockCallGraphMockRecorder) Callers(fn interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Callers", reflect.TypeOf((*MockCallGraph)(nil).Callers), fn)
}

func (m *MockCallGraph) SCCsReverseTopological() [][]*ir.Function {
	ret := m.ctrl.Call(m, "SCCsReverseTopological")
	out, _ := ret[0].([][]*ir.Function)
	return out
}

func (mr *MockCallGraphMockRecorder) SCCsReverseTopological() *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SCCsReverseTopological", reflect.TypeOf((*MockCallGraph)(nil).SCCsReverseTopological))
}

// MockModRefOracle is a mock of the ModRefOracle interface.
type MockModRefOracle struct {
	ctrl     *gomock.Controller
	recorder *MockModRefOracleMockRecorder
}

type MockModRefOracleMockRecorder struct{ mock *MockModRefOracle }

func NewMockModRefOracle(ctrl *gomock.Controller) *MockModRefOracle {
	m := &MockModRefOracle{ctrl: ctrl}
	m.recorder = &MockModRefOracleMockRecorder{m}
	return m
}

func (m *MockModRefOracle) EXPECT() *MockModRefOracleMockRecorder { return m.recorder }

func (m *MockModRefOracle) Mod(fn *ir.Function) []collab.Region {
	ret := m.ctrl.Call(m, "Mod", fn)
	out, _ := ret[0].([]collab.Region)
	return out
}

func (mr *MockModRefOracleMockRecorder) Mod(fn interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Mod", reflect.TypeOf((*MockModRefOracle)(nil).Mod), fn)
}

func (m *MockModRefOracle) Ref(fn *ir.Function) []collab.Region {
	ret := m.ctrl.Call(m, "Ref", fn)
	out, _ := ret[0].([]collab.Region)
	return out
}

func (mr *MockModRefOracleMockRecorder) Ref(fn interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Ref", reflect.TypeOf((*MockModRefOracle)(nil).Ref), fn)
}

// MockCollectiveTable is a mock of the CollectiveTable interface.
type MockCollectiveTable struct {
	ctrl     *gomock.Controller
	recorder *MockCollectiveTableMockRecorder
}

type MockCollectiveTableMockRecorder struct{ mock *MockCollectiveTable }

func NewMockCollectiveTable(ctrl *gomock.Controller) *MockCollectiveTable {
	m := &MockCollectiveTable{ctrl: ctrl}
	m.recorder = &MockCollectiveTableMockRecorder{m}
	return m
}

func (m *MockCollectiveTable) EXPECT() *MockCollectiveTableMockRecorder { return m.recorder }

func (m *MockCollectiveTable) IsCollective(fn *ir.Function) bool {
	ret := m.ctrl.Call(m, "IsCollective", fn)
	out, _ := ret[0].(bool)
	return out
}

func (mr *MockCollectiveTableMockRecorder) IsCollective(fn interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "IsCollective", reflect.TypeOf((*MockCollectiveTable)(nil).IsCollective), fn)
}

func (m *MockCollectiveTable) Color(fn *ir.Function) collab.Color {
	ret := m.ctrl.Call(m, "Color", fn)
	out, _ := ret[0].(collab.Color)
	return out
}

func (mr *MockCollectiveTableMockRecorder) Color(fn interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Color", reflect.TypeOf((*MockCollectiveTable)(nil).Color), fn)
}

func (m *MockCollectiveTable) CommArgIndex(c collab.Color) int {
	ret := m.ctrl.Call(m, "CommArgIndex", c)
	out, _ := ret[0].(int)
	return out
}

func (mr *MockCollectiveTableMockRecorder) CommArgIndex(c interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CommArgIndex", reflect.TypeOf((*MockCollectiveTable)(nil).CommArgIndex), c)
}

func (m *MockCollectiveTable) Name(fn *ir.Function) string {
	ret := m.ctrl.Call(m, "Name", fn)
	out, _ := ret[0].(string)
	return out
}

func (mr *MockCollectiveTableMockRecorder) Name(fn interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Name", reflect.TypeOf((*MockCollectiveTable)(nil).Name), fn)
}

// MockExternalModRef is a mock of the ExternalModRef interface.
type MockExternalModRef struct {
	ctrl     *gomock.Controller
	recorder *MockExternalModRefMockRecorder
}

type MockExternalModRefMockRecorder struct{ mock *MockExternalModRef }

func NewMockExternalModRef(ctrl *gomock.Controller) *MockExternalModRef {
	m := &MockExternalModRef{ctrl: ctrl}
	m.recorder = &MockExternalModRefMockRecorder{m}
	return m
}

func (m *MockExternalModRef) EXPECT() *MockExternalModRefMockRecorder { return m.recorder }

func (m *MockExternalModRef) Classify(name string) string {
	ret := m.ctrl.Call(m, "Classify", name)
	out, _ := ret[0].(string)
	return out
}

func (mr *MockExternalModRefMockRecorder) Classify(name interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Classify", reflect.TypeOf((*MockExternalModRef)(nil).Classify), name)
}

var (
	_ collab.PointerAnalysis = (*MockPointerAnalysis)(nil)
	_ collab.DominanceInfo   = (*MockDominanceInfo)(nil)
	_ collab.CallGraph       = (*MockCallGraph)(nil)
	_ collab.ModRefOracle    = (*MockModRefOracle)(nil)
	_ collab.CollectiveTable = (*MockCollectiveTable)(nil)
	_ collab.ExternalModRef  = (*MockExternalModRef)(nil)
)
