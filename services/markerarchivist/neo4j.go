// Package markerarchivist records marker lifecycle and feedback provenance in
// Neo4j, giving the scene a queryable history independent of the live
// registry.
package markerarchivist

import (
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jClient handles communication with Neo4j.
type Neo4jClient struct {
	driver neo4j.Driver
}

// NewNeo4jClient creates a new Neo4jClient and verifies connectivity.
func NewNeo4jClient(uri, user, password string) (*Neo4jClient, error) {
	driver, err := neo4j.NewDriver(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver creation failed: %w", err)
	}
	if err := driver.VerifyConnectivity(); err != nil {
		_ = driver.Close()
		return nil, fmt.Errorf("neo4j connectivity test failed: %w", err)
	}
	return &Neo4jClient{driver: driver}, nil
}

// UpsertMarker creates or updates a marker node after a full update.
func (n *Neo4jClient) UpsertMarker(namespace, name, description, frameID string) error {
	session := n.driver.NewSession(neo4j.SessionConfig{DatabaseName: "neo4j"})
	defer session.Close()

	query := `
MERGE (m:Marker {namespace: $namespace, name: $name})
SET m.description = $description,
    m.frame_id = $frame_id,
    m.erased = false
RETURN m
`
	_, err := session.Run(query, map[string]any{
		"namespace":   namespace,
		"name":        name,
		"description": description,
		"frame_id":    frameID,
	})
	return err
}

// RecordPose updates the stored pose of a marker node after a pose-only diff
// record.
func (n *Neo4jClient) RecordPose(namespace, name string, x, y, z float64) error {
	session := n.driver.NewSession(neo4j.SessionConfig{DatabaseName: "neo4j"})
	defer session.Close()

	query := `
MATCH (m:Marker {namespace: $namespace, name: $name})
SET m.x = $x, m.y = $y, m.z = $z
RETURN m
`
	_, err := session.Run(query, map[string]any{
		"namespace": namespace,
		"name":      name,
		"x":         x,
		"y":         y,
		"z":         z,
	})
	return err
}

// MarkErased flags a marker node as erased. The node is kept so feedback
// history stays connected.
func (n *Neo4jClient) MarkErased(namespace, name string) error {
	session := n.driver.NewSession(neo4j.SessionConfig{DatabaseName: "neo4j"})
	defer session.Close()

	query := `
MATCH (m:Marker {namespace: $namespace, name: $name})
SET m.erased = true
RETURN m
`
	_, err := session.Run(query, map[string]any{
		"namespace": namespace,
		"name":      name,
	})
	return err
}

// StoreFeedback stores one observer event as a node related to its marker.
func (n *Neo4jClient) StoreFeedback(eventID, namespace, name, clientID string, eventType uint8, timestamp string) error {
	session := n.driver.NewSession(neo4j.SessionConfig{DatabaseName: "neo4j"})
	defer session.Close()

	eventQuery := `
MERGE (f:Feedback {id: $event_id})
SET f.client_id = $client_id, f.event_type = $event_type, f.timestamp = $timestamp
RETURN f
`
	_, err := session.Run(eventQuery, map[string]any{
		"event_id":   eventID,
		"client_id":  clientID,
		"event_type": int64(eventType),
		"timestamp":  timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to create/merge feedback node: %w", err)
	}

	relQuery := `
MERGE (f:Feedback {id: $event_id})
MERGE (m:Marker {namespace: $namespace, name: $name})
MERGE (f)-[:RELATED_TO]->(m)
`
	_, err = session.Run(relQuery, map[string]any{
		"event_id":  eventID,
		"namespace": namespace,
		"name":      name,
	})
	if err != nil {
		return fmt.Errorf("failed to create relationship to marker: %w", err)
	}
	return nil
}

// Close closes the underlying driver.
func (n *Neo4jClient) Close() error {
	return n.driver.Close()
}
