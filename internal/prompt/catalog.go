package prompt

import (
	"encoding/json"
	"strings"
)

type Node struct {
	File        string
	Description string
}

type Category struct {
	Name  string
	Nodes []Node
}

// Group is a scope of categories. Unit and entity nodes share category names
// (movement, combat) so they live in separate groups.
type Group struct {
	Name       string
	Categories []Category
}

// Catalog is the ordered set of node types offered to the model.
type Catalog struct {
	Groups []Group
}

var nodeCatalog = Catalog{Groups: []Group{
	{
		Name: "Specific node subcategories pertaining to units",
		Categories: []Category{
			{Name: "formationFiles", Nodes: []Node{
				{"AssembleFormationTask.h", "Manages the process of assembling units into specified formations and positions, including validation and execution of formation orders"},
				{"CreateFormationTask.h", "Handles creation and initialization of new unit formations, including formation selection and hierarchy setup"},
				{"DeleteFormationTask.h", "Controls the cleanup and removal of formations, including proper dismantling of formation structures"},
			}},
			{Name: "movementFiles", Nodes: []Node{
				{"SelectNextRouteSegmentTask.h", "Controls progression through waypoints along a defined route, managing route segments"},
				{"NotifyRouteCompletedTask.h", "Handles notifications when units complete their assigned routes, including parent unit notifications"},
				{"IssueBoundingOverwatchTask.h", "Coordinates alternating movement between two units for tactical advancement using bounding overwatch technique"},
				{"IssueMovementOrdersTask.h", "Manages creation and distribution of basic movement orders to units and subunits"},
				{"IssueUnitMoveTacOrderTask.h", "Specializes in tactical movement orders for specific units, including formation maintenance"},
			}},
			{Name: "combatFiles", Nodes: []Node{
				{"IssueAttackOrdersTask.h", "Handles creation and distribution of attack orders, including coordination between units"},
				{"IssueDefendPositionOrdersTask.h", "Manages defensive position orders and coordination of unit defensive arrangements"},
				{"UnitAssignTargetsTask.h", "Controls the distribution of target assignments among unit members based on tactical priorities"},
				{"UnitCanEngageTargetCondition.h", "Evaluates whether units can effectively engage specific targets based on range and capabilities"},
				{"UnitCombatPowerCondition.h", "Assesses relative combat strength between friendly and enemy forces"},
			}},
			{Name: "evaluatorFiles", Nodes: []Node{
				{"UnitEnemySituationEvaluator.h", "Continuously assesses enemy presence, threat levels, and tactical situation"},
				{"UnitHealthStateTreeEvaluator.h", "Monitors unit health, combat effectiveness, and overall unit status"},
				{"UnitHierarchyEvaluator.h", "Manages and evaluates unit organizational structure and command relationships"},
			}},
			{Name: "eventFiles", Nodes: []Node{
				{"SignalUnitEnemySpottedEvent.h", "Manages the propagation of enemy detection notifications through the unit hierarchy"},
				{"UnitChangedEvent.h", "Handles events related to changes in unit composition or structure"},
				{"UnitMemberDestroyedEvent.h", "Processes events related to unit member casualties and their impact on the unit"},
			}},
			{Name: "tacticalFiles", Nodes: []Node{
				{"IssueSubunitFindCoverTask.h", "Coordinates subunits in searching for and evaluating potential cover positions"},
				{"IssueSubunitOccupyCoverTask.h", "Manages the process of units moving to and occupying identified cover positions"},
				{"FindEngagementLocationTask.h", "Determines optimal positions for unit engagement based on tactical considerations"},
				{"CancelSubOrdersTask.h", "Manages the cancellation and cleanup of existing orders for subunits"},
			}},
			{Name: "conditionFiles", Nodes: []Node{
				{"CheckTrueLeaderKilledCondition.h", "Evaluates and responds to the loss of unit leadership"},
				{"CheckUnitPlatformCondition.h", "Verifies unit type, capabilities, and platform-specific requirements"},
				{"MovementTechniqueCompareCondition.h", "Compares and evaluates different movement techniques for tactical situations"},
			}},
			{Name: "coordinationFiles", Nodes: []Node{
				{"WaitForAllUnitOrderCompletionTask.h", "Synchronizes completion of multiple unit orders before proceeding"},
				{"WaitForBoundingOverwatchCompletion.h", "Coordinates the completion of bounding overwatch movement between units"},
				{"RemoveDeadEntitiesTask.h", "Manages the removal and accounting of casualties from unit formations"},
				{"IssueHaltFRAGOTask.h", "Handles immediate order changes and emergency stops for units"},
			}},
		},
	},
	{
		Name: "Specific node subcategories pertaining to individual entities",
		Categories: []Category{
			{Name: "perceptionFiles", Nodes: []Node{
				{"EntitySensedEntitiesComponent.h", "Manages individual entity sensory information"},
				{"EntitySightModeComponent.h", "Controls entity vision and detection capabilities"},
				{"EntityVisibilityComponent.h", "Handles entity visibility states and checks"},
			}},
			{Name: "movementFiles", Nodes: []Node{
				{"EntityMovementComponent.h", "Controls individual entity movement"},
				{"EntityPathfindingComponent.h", "Manages pathfinding for individual entities"},
				{"EntityNavigationComponent.h", "Handles navigation and obstacle avoidance"},
			}},
			{Name: "combatFiles", Nodes: []Node{
				{"EntityCombatComponent.h", "Manages individual combat capabilities"},
				{"EntityWeaponComponent.h", "Controls weapon systems and firing"},
				{"EntityTargetingComponent.h", "Handles target acquisition and tracking"},
			}},
			{Name: "healthFiles", Nodes: []Node{
				{"EntityHealthComponent.h", "Tracks entity health and damage"},
				{"EntityStatusComponent.h", "Monitors entity status conditions"},
				{"EntityVitalityComponent.h", "Manages stamina and other vital stats"},
			}},
			{Name: "behaviorFiles", Nodes: []Node{
				{"EntityBehaviorTreeComponent.h", "Controls individual AI decision making"},
				{"EntityStateComponent.h", "Manages entity state machines"},
				{"EntityTaskComponent.h", "Handles individual task execution"},
			}},
			{Name: "communicationFiles", Nodes: []Node{
				{"EntityMessageComponent.h", "Manages entity communication"},
				{"EntitySignalComponent.h", "Handles signals and alerts"},
				{"EntityCommandComponent.h", "Processes received commands"},
			}},
		},
	},
}}

// NodeCatalog returns a copy of the node-type catalog.
func NodeCatalog() Catalog {
	return nodeCatalog.clone()
}

// Len counts nodes across all groups.
func (c Catalog) Len() int {
	n := 0
	for _, g := range c.Groups {
		for _, cat := range g.Categories {
			n += len(cat.Nodes)
		}
	}
	return n
}

// Text renders the catalog as indented JSON, keeping declaration order.
func (c Catalog) Text() string {
	var b strings.Builder
	b.WriteString("{\n")
	for gi, g := range c.Groups {
		writeKey(&b, 1, g.Name)
		b.WriteString("{\n")
		for ci, cat := range g.Categories {
			writeKey(&b, 2, cat.Name)
			b.WriteString("{\n")
			for ni, n := range cat.Nodes {
				writeKey(&b, 3, n.File)
				b.WriteString(quote(n.Description))
				writeClose(&b, ni == len(cat.Nodes)-1)
			}
			indent(&b, 2)
			b.WriteString("}")
			writeClose(&b, ci == len(g.Categories)-1)
		}
		indent(&b, 1)
		b.WriteString("}")
		writeClose(&b, gi == len(c.Groups)-1)
	}
	b.WriteString("}")
	return b.String()
}

func (c Catalog) clone() Catalog {
	out := Catalog{Groups: make([]Group, len(c.Groups))}
	for i, g := range c.Groups {
		cats := make([]Category, len(g.Categories))
		for j, cat := range g.Categories {
			cats[j] = Category{Name: cat.Name, Nodes: append([]Node(nil), cat.Nodes...)}
		}
		out.Groups[i] = Group{Name: g.Name, Categories: cats}
	}
	return out
}

func writeKey(b *strings.Builder, depth int, key string) {
	indent(b, depth)
	b.WriteString(quote(key))
	b.WriteString(": ")
}

func writeClose(b *strings.Builder, last bool) {
	if !last {
		b.WriteString(",")
	}
	b.WriteString("\n")
}

func indent(b *strings.Builder, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
}

func quote(s string) string {
	raw, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(raw)
}
