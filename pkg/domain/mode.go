package domain

import "fmt"

// Mode is the interaction state of a session. At most one is active at a time.
type Mode int

const (
	ModeNone Mode = iota
	ModeAddGene
	ModeAddNode
	ModeAddLink
	ModeAddNote
	ModeDrawGroup
	ModeAddSubGroup
	ModeMoveGroup
	ModeChangeGroupMembership
	ModeDrawNetModule
	ModeDrawNetModuleLink
	ModeAddToNetModule
	ModeMoveNetModule
	ModeRelocate
	ModeRelocateSource
	ModeRelocateTarget
	ModeChangeSourceNode
	ModeChangeTargetNode
	ModeSwapPads
	ModeAddExtraProxyNode
	ModePullDown
	ModePullDownRootInstance
	ModePathsFromUserSelected
	ModeDefineCisRegModule
	ModeMoveElements
)

var modeNames = map[Mode]string{
	ModeNone:                  "none",
	ModeAddGene:               "add_gene",
	ModeAddNode:               "add_node",
	ModeAddLink:               "add_link",
	ModeAddNote:               "add_note",
	ModeDrawGroup:             "draw_group",
	ModeAddSubGroup:           "add_sub_group",
	ModeMoveGroup:             "move_group",
	ModeChangeGroupMembership: "change_group_membership",
	ModeDrawNetModule:         "draw_net_module",
	ModeDrawNetModuleLink:     "draw_net_module_link",
	ModeAddToNetModule:        "add_to_net_module",
	ModeMoveNetModule:         "move_net_module",
	ModeRelocate:              "relocate",
	ModeRelocateSource:        "relocate_source",
	ModeRelocateTarget:        "relocate_target",
	ModeChangeSourceNode:      "change_source_node",
	ModeChangeTargetNode:      "change_target_node",
	ModeSwapPads:              "swap_pads",
	ModeAddExtraProxyNode:     "add_extra_proxy_node",
	ModePullDown:              "pull_down",
	ModePullDownRootInstance:  "pull_down_root_instance",
	ModePathsFromUserSelected: "paths_from_user_selected",
	ModeDefineCisRegModule:    "define_cis_reg_module",
	ModeMoveElements:          "move_elements",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Modes returns every known mode in declaration order.
func Modes() []Mode {
	out := make([]Mode, 0, len(modeNames))
	for m := ModeNone; m <= ModeMoveElements; m++ {
		out = append(out, m)
	}
	return out
}

// ParseMode maps a mode name back to its value.
func ParseMode(s string) (Mode, bool) {
	for m, name := range modeNames {
		if name == s {
			return m, true
		}
	}
	return ModeNone, false
}
