package hri

import "context"

// Belief types used in queries.
const (
	BeliefPerson = "person"
	BeliefRobot  = "robot"
	BeliefObject = "object"

	// BeliefVision holds per-person detections from computer vision.
	// Each fact has "id" (person id) and "seen" ("true" or "false").
	BeliefVision = "computer_vision_data"
)

// RobotFactID is the id given to the robot's own fact when it has none.
const RobotFactID = "self"

// BeliefSystem stores and retrieves facts about the robot, its environment
// and the people around it.
//
// Get returns every fact of the given type whose attributes match all words of
// description (see Fact.Matches); an empty description matches every fact of
// the type. Update stores a fact of any type; the typed updates are shorthands.
type BeliefSystem interface {
	Get(ctx context.Context, factType, description string) ([]Fact, error)
	Update(ctx context.Context, factType string, fact Fact) error
	UpdatePerson(ctx context.Context, person Fact) error
	UpdateRobot(ctx context.Context, robot Fact) error
	UpdateObject(ctx context.Context, object Fact) error
	Robot(ctx context.Context) (Fact, error)
}
