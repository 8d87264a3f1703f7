package server

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lfarias/chatrelay/pkg/store"
)

// GroupYAML represents a group in YAML config.
type GroupYAML struct {
	Name    string   `yaml:"name"`
	Creator string   `yaml:"creator"`
	Members []string `yaml:"members,omitempty"`
}

// GroupsConfig is the top-level YAML config for groups.
type GroupsConfig struct {
	Groups []GroupYAML `yaml:"groups"`
}

// TransferYAML represents one relayed-file audit record in YAML export.
type TransferYAML struct {
	ID        int64  `yaml:"id"`
	Sender    string `yaml:"sender"`
	Target    string `yaml:"target"`
	Mode      string `yaml:"mode"`
	Filename  string `yaml:"filename"`
	Path      string `yaml:"path"`
	Size      int64  `yaml:"size"`
	CreatedAt string `yaml:"created_at"`
}

// TransfersExport is the top-level YAML for transfer export.
type TransfersExport struct {
	Transfers []TransferYAML `yaml:"transfers"`
}

// LoadGroupsFromYAML reads a groups YAML file and creates the groups in
// the store.
func LoadGroupsFromYAML(path string, st store.DataStore) error {
	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI config
	if err != nil {
		return fmt.Errorf("read groups config: %w", err)
	}
	return ImportGroupsFromYAML(data, st)
}

// ImportGroupsFromYAML parses YAML data and creates the listed groups.
// Groups that already exist keep their members; listed members are
// merged in.
func ImportGroupsFromYAML(data []byte, st store.DataStore) error {
	var cfg GroupsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse groups config: %w", err)
	}

	imported := 0
	for _, g := range cfg.Groups {
		if err := ensureGroup(st, g); err != nil {
			slog.Error("failed to create group from config", "name", g.Name, "err", err)
			continue
		}
		imported++
	}

	slog.Info("imported groups from YAML", "count", imported)
	return nil
}

func ensureGroup(st store.DataStore, g GroupYAML) error {
	existing, err := st.GetGroup(g.Name)
	if err != nil {
		return err
	}
	if existing == nil {
		creator := g.Creator
		if creator == "" && len(g.Members) > 0 {
			creator = g.Members[0]
		}
		if _, err := st.CreateGroup(g.Name, creator); err != nil {
			return err
		}
		slog.Debug("created group from config", "name", g.Name, "creator", creator)
	}

	for _, m := range g.Members {
		if err := st.AddGroupMember(g.Name, m); err != nil {
			return err
		}
	}
	return nil
}

// ExportGroupsYAML exports all groups as YAML.
func ExportGroupsYAML(st store.DataStore) ([]byte, error) {
	groups, err := st.ListGroups()
	if err != nil {
		return nil, err
	}

	cfg := GroupsConfig{}
	for _, g := range groups {
		cfg.Groups = append(cfg.Groups, GroupYAML{
			Name:    g.Name,
			Members: g.Members,
		})
	}
	return yaml.Marshal(&cfg)
}

// ExportTransfersYAML exports the relayed-file audit log as YAML,
// newest first.
func ExportTransfersYAML(st store.DataStore) ([]byte, error) {
	transfers, err := st.ListTransfers(0)
	if err != nil {
		return nil, err
	}

	export := TransfersExport{}
	for _, t := range transfers {
		export.Transfers = append(export.Transfers, TransferYAML{
			ID:        t.ID,
			Sender:    t.Sender,
			Target:    t.Target,
			Mode:      t.Mode,
			Filename:  t.Filename,
			Path:      t.StoredPath,
			Size:      t.Size,
			CreatedAt: t.CreatedAt.Format("2006-01-02T15:04:05Z"),
		})
	}
	return yaml.Marshal(&export)
}
