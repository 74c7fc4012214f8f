package pharmacy

// PresetCatalog is the stock medication list loaded by the seed command.
// Lab-dependent entries require a completed lab workup before their
// prescriptions can be filled.
func PresetCatalog() []PresetMedication {
	type entry struct {
		name, dosages, category string
		requiresLab             bool
	}
	entries := []entry{
		{"Amoxicillin", "250mg, 500mg, 875mg", "Antibiotics", false},
		{"Azithromycin", "250mg, 500mg", "Antibiotics", false},
		{"Ciprofloxacin", "250mg, 500mg", "Antibiotics", false},
		{"Doxycycline", "100mg", "Antibiotics", false},
		{"Cephalexin", "250mg, 500mg", "Antibiotics", false},
		{"Clindamycin", "150mg, 300mg", "Antibiotics", false},
		{"Metronidazole", "250mg, 500mg", "Antibiotics", false},
		{"Trimethoprim-Sulfamethoxazole", "80mg-400mg, 160mg-800mg", "Antibiotics", true},

		{"Acetaminophen", "325mg, 500mg, 650mg", "Pain Relief", false},
		{"Ibuprofen", "200mg, 400mg, 600mg, 800mg", "Pain Relief", false},
		{"Naproxen", "220mg, 375mg, 500mg", "Pain Relief", false},
		{"Aspirin", "81mg, 325mg", "Pain Relief", false},
		{"Tramadol", "50mg, 100mg", "Pain Relief", false},

		{"Lisinopril", "5mg, 10mg, 20mg, 40mg", "Cardiovascular", true},
		{"Amlodipine", "2.5mg, 5mg, 10mg", "Cardiovascular", false},
		{"Metoprolol", "25mg, 50mg, 100mg", "Cardiovascular", false},
		{"Hydrochlorothiazide", "12.5mg, 25mg, 50mg", "Cardiovascular", true},
		{"Atorvastatin", "10mg, 20mg, 40mg, 80mg", "Cardiovascular", true},

		{"Metformin", "500mg, 850mg, 1000mg", "Diabetes", true},
		{"Glipizide", "5mg, 10mg", "Diabetes", true},
		{"Insulin NPH", "U-100", "Diabetes", true},
		{"Insulin Regular", "U-100", "Diabetes", true},

		{"Albuterol Inhaler", "90mcg/puff", "Respiratory", false},
		{"Fluticasone Inhaler", "44mcg, 110mcg, 220mcg", "Respiratory", false},
		{"Prednisone", "5mg, 10mg, 20mg", "Respiratory", false},
		{"Guaifenesin", "100mg, 200mg, 400mg", "Respiratory", false},
		{"Dextromethorphan", "15mg, 30mg", "Respiratory", false},

		{"Omeprazole", "10mg, 20mg, 40mg", "Gastrointestinal", false},
		{"Famotidine", "10mg, 20mg, 40mg", "Gastrointestinal", false},
		{"Ondansetron", "4mg, 8mg", "Gastrointestinal", false},
		{"Loperamide", "2mg", "Gastrointestinal", false},
		{"Bismuth Subsalicylate", "262mg", "Gastrointestinal", false},

		{"Hydrocortisone Cream", "0.5%, 1%, 2.5%", "Dermatology", false},
		{"Mupirocin Ointment", "2%", "Dermatology", false},
		{"Clotrimazole Cream", "1%", "Dermatology", false},
		{"Ketoconazole Cream", "2%", "Dermatology", false},

		{"Ciprofloxacin Eye Drops", "0.3%", "Ophthalmology", false},
		{"Prednisolone Eye Drops", "1%", "Ophthalmology", false},
		{"Artificial Tears", "Various", "Ophthalmology", false},

		{"Levonorgestrel", "1.5mg", "Women's Health", false},
		{"Iron Sulfate", "65mg", "Women's Health", false},
		{"Folic Acid", "0.4mg, 5mg", "Women's Health", false},

		{"Sertraline", "25mg, 50mg, 100mg", "Mental Health", false},
		{"Fluoxetine", "10mg, 20mg, 40mg", "Mental Health", false},
		{"Lorazepam", "0.5mg, 1mg, 2mg", "Mental Health", false},

		{"Vitamin D3", "1000IU, 2000IU, 5000IU", "Vitamins", false},
		{"Vitamin B12", "100mcg, 500mcg, 1000mcg", "Vitamins", false},
		{"Multivitamin", "Adult, Children", "Vitamins", false},
		{"Calcium Carbonate", "500mg, 600mg", "Vitamins", false},

		{"Bacitracin Ointment", "500 units/g", "Topical", false},
		{"Triple Antibiotic Ointment", "400 units/g", "Topical", false},
		{"Calamine Lotion", "8%", "Topical", false},
		{"Zinc Oxide", "20%, 40%", "Topical", false},
	}

	catalog := make([]PresetMedication, 0, len(entries))
	for _, e := range entries {
		catalog = append(catalog, PresetMedication{
			Name:          e.name,
			CommonDosages: e.dosages,
			RequiresLab:   e.requiresLab,
			Category:      e.category,
			Active:        true,
		})
	}
	return catalog
}
